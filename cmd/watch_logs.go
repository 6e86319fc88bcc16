package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/daemon"
	"github.com/dimasma0305/devwatch/internal/log"
)

var logsLines int

var watchLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Follow and display monitor logs in real-time",
	Long:  `Stream the monitor daemon log file in real-time (like tail -f), coloring lines by category.`,
	Example: `  # View logs
  devwatch watch logs

  # Show more context before following
  devwatch watch logs -n 20`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logFile := cfg.Resolve(cfg.Daemon.LogFile)

		log.Info("📋 Following devwatch logs: %s", logFile)
		log.Info("Press Ctrl+C to stop following logs")
		log.Info("==========================================")

		out := cmd.OutOrStdout()
		daemon.ShowRecentLogs(out, logFile, logsLines)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return daemon.FollowLogs(ctx, out, logFile)
	},
}

func init() {
	watchCmd.AddCommand(watchLogsCmd)

	watchLogsCmd.Flags().IntVarP(&logsLines, "lines", "n", 5, "Number of recent lines to show first")
}
