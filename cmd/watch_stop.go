package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/daemon"
	"github.com/dimasma0305/devwatch/internal/log"
)

var stopGrace time.Duration

var watchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the monitor daemon",
	Long: `Stop the running monitor. The monitor is first asked to shut down over
its control socket; if it does not exit within the grace period it is sent
SIGTERM, then SIGKILL.`,
	Example: `  devwatch watch stop
  devwatch watch stop --grace 10s`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return stopMonitor(cfg, stopGrace)
	},
}

func stopMonitor(cfg *config.Config, grace time.Duration) error {
	pidFile := cfg.Resolve(cfg.Daemon.PidFile)

	log.Info("🛑 Stopping devwatch monitor...")
	if client := monitorClient(cfg); client != nil {
		if err := client.Stop(); err != nil {
			log.Warn("Stop request failed: %v", err)
		} else if waitStopped(pidFile, grace) {
			log.Info("✅ Monitor stopped")
			return nil
		}
	}

	if err := daemon.Stop(pidFile, grace); err != nil {
		return err
	}
	log.Info("✅ Monitor stopped")
	return nil
}

// waitStopped polls the PID file until the process is gone
func waitStopped(pidFile string, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !daemon.GetStatus(pidFile).Running {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func init() {
	watchCmd.AddCommand(watchStopCmd)

	watchStopCmd.Flags().DurationVar(&stopGrace, "grace", daemon.DefaultStopGrace, "How long to wait before killing the monitor")
}
