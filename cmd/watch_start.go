package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch"
	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/daemon"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/log"
)

var (
	watchForeground bool
	watchInterval   time.Duration
	watchLogs       []string
	watchStream     string
	watchNoJournal  bool
	watchRestart    bool
)

var watchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor daemon",
	Long: `Start the monitor for the project.

The monitor runs as a daemon by default, writing its PID and log under
.devwatch/. Use --foreground to run in the current terminal. Flags
override the values from .devwatch/config.yaml.`,
	Example: `  # Start as daemon
  devwatch watch start

  # Start in foreground with a faster tick
  devwatch watch start --foreground --interval 2s

  # Watch specific logs and expose the websocket stream
  devwatch watch start --log web --log api --stream 127.0.0.1:7357`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyWatchFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		pidFile := cfg.Resolve(cfg.Daemon.PidFile)
		// The forked child finds the PID file its parent locked for it
		if !daemon.WasReborn() {
			if st := daemon.GetStatus(pidFile); st.Running {
				return fmt.Errorf("monitor already running (PID %d)", st.PID)
			}
		}

		if watchForeground {
			return runForeground(cfg, pidFile)
		}
		return runDaemon(cfg, pidFile)
	},
}

// applyWatchFlags copies explicitly set flags over the loaded config
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Interval = watchInterval
	}
	if flags.Changed("log") {
		cfg.Logs = watchLogs
	}
	if flags.Changed("stream") {
		cfg.Stream.Enabled = watchStream != ""
		cfg.Stream.Addr = watchStream
	}
	if flags.Changed("no-journal") {
		cfg.Journal.Enabled = !watchNoJournal
	}
	if flags.Changed("restart-watchers") {
		cfg.RestartWatchers = watchRestart
	}
}

func runForeground(cfg *config.Config, pidFile string) error {
	engine, err := devwatch.New(cfg)
	if err != nil {
		return err
	}

	pid := os.Getpid()
	if err := daemon.WritePIDFile(pidFile, pid); err != nil {
		return err
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidFile, pid); err != nil {
			log.Error("%v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopPrinting := engine.Subscribe(func(e events.Event) { log.Plain("%s", e.Colored()) })
	defer stopPrinting()

	log.Info("Monitor running in foreground. Press Ctrl+C to stop.")
	return engine.Run(ctx)
}

func runDaemon(cfg *config.Config, pidFile string) error {
	logFile := cfg.Resolve(cfg.Daemon.LogFile)
	d := daemon.New(daemon.Options{PidFile: pidFile, LogFile: logFile})

	child, err := d.Reborn()
	if err != nil {
		return err
	}
	if child != nil {
		log.Info("✅ devwatch monitor started")
		log.Info("📄 PID: %d (saved to %s)", child.Pid, pidFile)
		log.Info("📝 Logs: %s", logFile)
		return nil
	}
	defer func() {
		if err := d.Release(); err != nil {
			log.Error("Failed to release PID file: %v", err)
		}
	}()

	log.Info("🚀 devwatch monitor daemon started (PID: %d)", os.Getpid())
	engine, err := devwatch.New(cfg)
	if err != nil {
		return err
	}
	stopPrinting := engine.Subscribe(func(e events.Event) { log.Plain("%s", e.String()) })
	defer stopPrinting()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return engine.Run(ctx)
}

func init() {
	watchCmd.AddCommand(watchStartCmd)

	watchStartCmd.Flags().BoolVarP(&watchForeground, "foreground", "f", false, "Run in foreground instead of daemon mode")
	watchStartCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 5*time.Second, "Snapshot interval")
	watchStartCmd.Flags().StringSliceVarP(&watchLogs, "log", "l", []string{}, "Log name(s) to watch (can be specified multiple times)")
	watchStartCmd.Flags().StringVar(&watchStream, "stream", "", "Serve the websocket event stream on this address")
	watchStartCmd.Flags().BoolVar(&watchNoJournal, "no-journal", false, "Do not record events to the journal")
	watchStartCmd.Flags().BoolVar(&watchRestart, "restart-watchers", false, "Re-launch log watchers that close")

	_ = watchStartCmd.RegisterFlagCompletionFunc("log", validLogNames)
}
