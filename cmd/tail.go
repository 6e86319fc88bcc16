package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/logwatch"
	"github.com/dimasma0305/devwatch/internal/log"
)

var tailInfo bool

var tailCmd = &cobra.Command{
	Use:   "tail [log...]",
	Short: "Follow dev logs and print classified lines",
	Long: `Follow one or more logs under the project's logs directory and print
each new line with its category (error, warning, success, url).
Without arguments the configured logs are followed.`,
	Example: `  # Follow the configured logs
  devwatch tail

  # Follow specific logs, including info lines
  devwatch tail web api --info`,
	ValidArgsFunction: validLogNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = cfg.Logs
		}
		if len(names) == 0 {
			return fmt.Errorf("no logs to follow; pass a log name or set logs in %s", config.Path(cfg.Root))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runTail(ctx, cmd.OutOrStdout(), cfg, names, tailInfo)
	},
}

// printSink writes each event as one colored line
type printSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printSink) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, e.Colored())
}

// runTail follows names until ctx is done
func runTail(ctx context.Context, w io.Writer, cfg *config.Config, names []string, includeInfo bool) error {
	watchCfg := logwatch.Config{
		LogsDir:     cfg.Resolve(cfg.LogsDir),
		IncludeInfo: includeInfo || cfg.IncludeInfo,
		StopGrace:   cfg.WatcherGrace,
		Poll:        cfg.PollLogs,
	}
	sink := &printSink{w: w}

	handles := make([]*logwatch.Handle, 0, len(names))
	defer func() {
		for _, h := range handles {
			if err := h.Stop(); err != nil {
				log.Warn("%s: %v", h.LogName, err)
			}
		}
	}()
	for _, name := range names {
		h, err := logwatch.Watch(watchCfg, name, sink)
		if err != nil {
			return err
		}
		handles = append(handles, h)
		log.InfoH3("Following %s", h.FilePath)
	}

	<-ctx.Done()
	return nil
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().BoolVar(&tailInfo, "info", false, "Also print lines classified as info")
}
