package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

var (
	scanJSON  bool
	scanFresh bool
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	Aliases: []string{"s"},
	Short:   "Take a snapshot of the development environment",
	Long: `Probe processes, local endpoints, code quality tools, git and the
workspace layout, and print the resulting snapshot.

When a monitor is running for the project its cached snapshot is used;
--fresh forces it to probe again.`,
	Example: `  # Human readable snapshot
  devwatch scan

  # Full snapshot as JSON
  devwatch scan --json

  # Bypass the running monitor's cache
  devwatch scan --fresh`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScan(cmd.Context(), cmd.OutOrStdout(), scanFresh, scanJSON)
	},
}

func runScan(ctx context.Context, w io.Writer, fresh, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var snap types.Snapshot
	if client := monitorClient(cfg); client != nil {
		log.Debug("Using running monitor at %s", cfg.Daemon.SocketPath)
		if err := client.Scan(fresh, &snap); err != nil {
			return err
		}
	} else {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		stop := startSpinner(asJSON, " Probing environment...")
		snap, err = engine.Scan(ctx)
		stop()
		if err != nil {
			return err
		}
	}

	if asJSON {
		return printJSON(w, snap)
	}
	printSnapshot(w, snap)
	return nil
}

// startSpinner shows progress on stderr while probes run. The spinner
// stays silent when stderr is not a terminal.
func startSpinner(quiet bool, suffix string) (stop func()) {
	if quiet {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output the snapshot as JSON")
	scanCmd.Flags().BoolVar(&scanFresh, "fresh", false, "Probe again instead of using a cached snapshot")
}
