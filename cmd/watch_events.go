package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/journal"
)

var (
	eventsLimit int
	eventsKind  string
	eventsJSON  bool
)

var watchEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent monitor events",
	Long: `Show the most recent events of the running monitor: classified log lines,
transitions and lifecycle notices. Events come from the journal when it is
enabled, otherwise from the monitor's in-memory history.`,
	Example: `  devwatch watch events
  devwatch watch events --kind transition --limit 20
  devwatch watch events --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return showEvents(cmd.OutOrStdout(), cfg, eventsLimit, eventsKind, eventsJSON)
	},
}

func showEvents(w io.Writer, cfg *config.Config, limit int, kind string, asJSON bool) error {
	client := monitorClient(cfg)
	if client == nil {
		return fmt.Errorf("monitor is not running (no answer on %s)", cfg.Resolve(cfg.Daemon.SocketPath))
	}

	var entries []journal.Entry
	if err := client.Events(limit, kind, &entries); err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, entries)
	}
	printEntries(w, entries)
	return nil
}

func init() {
	watchCmd.AddCommand(watchEventsCmd)

	watchEventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", journal.DefaultQueryLimit, "Maximum number of events")
	watchEventsCmd.Flags().StringVar(&eventsKind, "kind", "", "Only events of this kind (log, transition, monitor.error, ...)")
	watchEventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output events as JSON")
}
