package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch"
	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/socket"
)

// pingTimeout is short so commands fall back to a local scan quickly
// when no monitor answers
const pingTimeout = 2 * time.Second

// callMargin covers socket and encoding overhead on top of the probe bounds
const callMargin = 5 * time.Second

// loadConfig reads the configuration of the project selected by --dir
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newEngine builds an engine for the selected project
func newEngine() (*devwatch.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return devwatch.New(cfg)
}

// monitorClient returns a client when a monitor answers on the project's
// control socket, nil otherwise
func monitorClient(cfg *config.Config) *socket.Client {
	if !cfg.Daemon.SocketEnabled {
		return nil
	}
	client := socket.NewClient(cfg.Resolve(cfg.Daemon.SocketPath))
	client.SetTimeout(pingTimeout)
	if !client.IsRunning() {
		return nil
	}
	client.SetTimeout(callTimeout(cfg))
	return client
}

// callTimeout bounds a data round trip. A scan inside the monitor may run
// every probe, so the bound follows the slowest configured probe.
func callTimeout(cfg *config.Config) time.Duration {
	slowest := cfg.Network.Timeout
	for _, d := range []time.Duration{cfg.Quality.TypeCheck, cfg.Quality.Lint, cfg.Quality.Build} {
		if d > slowest {
			slowest = d
		}
	}
	if t := slowest + callMargin; t > socket.DefaultTimeout {
		return t
	}
	return socket.DefaultTimeout
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
