package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch"
	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/daemon"
)

var watchStatusJSON bool

// monitorReport combines the PID file view with what the monitor reports
type monitorReport struct {
	Daemon  daemon.Status    `json:"daemon"`
	LogFile string           `json:"log_file"`
	Socket  string           `json:"socket,omitempty"`
	Status  *devwatch.Status `json:"status,omitempty"`
	Error   string           `json:"error,omitempty"`
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor status",
	Long:  `Display the state of the monitor daemon and, when it answers on its socket, its live summary.`,
	Example: `  # Show status
  devwatch watch status

  # Show status in JSON format
  devwatch watch status --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return showMonitorStatus(cmd.OutOrStdout(), cfg, watchStatusJSON)
	},
}

func collectMonitorReport(cfg *config.Config) monitorReport {
	report := monitorReport{
		Daemon:  daemon.GetStatus(cfg.Resolve(cfg.Daemon.PidFile)),
		LogFile: cfg.Resolve(cfg.Daemon.LogFile),
	}
	if !cfg.Daemon.SocketEnabled {
		return report
	}
	report.Socket = cfg.Resolve(cfg.Daemon.SocketPath)
	if client := monitorClient(cfg); client != nil {
		var st devwatch.Status
		if err := client.Status(&st); err != nil {
			report.Error = err.Error()
		} else {
			report.Status = &st
		}
	}
	return report
}

func showMonitorStatus(w io.Writer, cfg *config.Config, asJSON bool) error {
	report := collectMonitorReport(cfg)
	if asJSON {
		return printJSON(w, report)
	}

	fmt.Fprintln(w, "🔍 devwatch Monitor Status")
	fmt.Fprintln(w, "==========================================")
	printDaemonStatus(w, report.Daemon, report.LogFile)
	if report.Socket != "" {
		state := "not answering"
		if report.Status != nil {
			state = "answering"
		}
		fmt.Fprintf(w, "🔌 Socket: %s (%s)\n", report.Socket, state)
	}
	if report.Error != "" {
		fmt.Fprintf(w, "💬 %s\n", report.Error)
	}
	if report.Status != nil {
		fmt.Fprintln(w)
		printStatus(w, *report.Status)
	}
	if report.Daemon.Running {
		fmt.Fprintln(w)
		daemon.ShowRecentLogs(w, report.LogFile, 5)
	}
	return nil
}

func init() {
	watchCmd.AddCommand(watchStatusCmd)

	watchStatusCmd.Flags().BoolVar(&watchStatusJSON, "json", false, "Output status in JSON format")
}
