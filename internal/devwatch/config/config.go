// Package config loads the per-project devwatch configuration from
// .devwatch/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dimasma0305/devwatch/internal/devwatch/cache"
	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/devwatch/probe"
)

// Dir is the per-project state directory
const Dir = ".devwatch"

// FileName is the config file inside Dir
const FileName = "config.yaml"

// Config is the full devwatch configuration
type Config struct {
	// Root is the project directory; never read from the file
	Root string `yaml:"-"`

	Interval        time.Duration `yaml:"interval"`
	LogsDir         string        `yaml:"logs_dir"`
	Logs            []string      `yaml:"logs"`
	IncludeInfo     bool          `yaml:"include_info"`
	PollLogs        bool          `yaml:"poll_logs"`
	RestartWatchers bool          `yaml:"restart_watchers"`
	WatcherGrace    time.Duration `yaml:"watcher_grace"`
	DetectRestarts  bool          `yaml:"detect_restarts"`
	HistorySize     int           `yaml:"history_size"`

	Cache   CacheConfig           `yaml:"cache"`
	Network NetworkConfig         `yaml:"network"`
	Quality probe.QualityTimeouts `yaml:"quality"`
	Daemon  DaemonConfig          `yaml:"daemon"`
	Journal JournalConfig         `yaml:"journal"`
	Stream  StreamConfig          `yaml:"stream"`
	Notify  NotifyConfig          `yaml:"notify"`
}

// CacheConfig bounds the snapshot cache
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// NetworkConfig selects the endpoints probed
type NetworkConfig struct {
	Host      string               `yaml:"host"`
	Timeout   time.Duration        `yaml:"timeout"`
	Endpoints []probe.EndpointSpec `yaml:"endpoints,omitempty"`
}

// DaemonConfig locates the background monitor's files
type DaemonConfig struct {
	PidFile       string `yaml:"pid_file"`
	LogFile       string `yaml:"log_file"`
	SocketEnabled bool   `yaml:"socket_enabled"`
	SocketPath    string `yaml:"socket_path"`
}

// JournalConfig controls the sqlite event journal
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	// Retention drops older entries when the monitor starts; 0 keeps all
	Retention time.Duration `yaml:"retention"`
}

// StreamConfig controls the websocket event stream
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// NotifyConfig configures the outbound notification sinks
type NotifyConfig struct {
	// Kinds limits which transitions are sent; empty means the defaults
	Kinds       []string      `yaml:"kinds,omitempty"`
	// MinInterval and Burst rate limit outbound notifications
	MinInterval time.Duration `yaml:"min_interval"`
	Burst       int           `yaml:"burst"`
	Discord     DiscordConfig `yaml:"discord"`
	Email       EmailConfig   `yaml:"email"`
}

// DiscordConfig is a Discord webhook target
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// EmailConfig is an SMTP target
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to,omitempty"`
}

// Default returns the configuration used when no file is present
func Default(root string) *Config {
	return &Config{
		Root:         root,
		Interval:     5 * time.Second,
		LogsDir:      filepath.Join(Dir, "logs"),
		Logs:         []string{"dev"},
		WatcherGrace: 2 * time.Second,
		HistorySize:  200,
		Cache: CacheConfig{
			MaxEntries: cache.DefaultMaxEntries,
			TTL:        cache.DefaultTTL,
		},
		Network: NetworkConfig{
			Host:    "localhost",
			Timeout: probe.DefaultEndpointTimeout,
		},
		Quality: probe.QualityTimeouts{
			TypeCheck: probe.DefaultTypeCheckTimeout,
			Lint:      probe.DefaultLintTimeout,
			Build:     probe.DefaultBuildTimeout,
		},
		Daemon: DaemonConfig{
			PidFile:       filepath.Join(Dir, "devwatch.pid"),
			LogFile:       filepath.Join(Dir, "devwatch.log"),
			SocketEnabled: true,
			SocketPath:    filepath.Join(Dir, "devwatch.sock"),
		},
		Journal: JournalConfig{
			Enabled:   true,
			Path:      filepath.Join(Dir, "journal.db"),
			Retention: 7 * 24 * time.Hour,
		},
		Stream: StreamConfig{
			Addr: "127.0.0.1:7357",
		},
	}
}

// Path returns the config file location for a project
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Load reads the project configuration. A missing file yields the
// defaults. ${VAR} references are expanded from the environment.
func Load(root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	cfg := Default(absRoot)

	//nolint:gosec // G304: config path inside the project directory
	data, err := os.ReadFile(Path(absRoot))
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, dwerrors.Wrapf(dwerrors.ErrInvalidConfig, "parse %s: %v", Path(absRoot), err)
	}
	cfg.Root = absRoot

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Interval <= 0 {
		problems = append(problems, "interval must be positive")
	}
	if c.WatcherGrace < 0 {
		problems = append(problems, "watcher_grace must not be negative")
	}
	if c.Cache.MaxEntries < 0 || c.Cache.TTL < 0 {
		problems = append(problems, "cache limits must not be negative")
	}
	if c.Network.Timeout < 0 {
		problems = append(problems, "network.timeout must not be negative")
	}
	if c.Quality.TypeCheck < 0 || c.Quality.Lint < 0 || c.Quality.Build < 0 {
		problems = append(problems, "quality timeouts must not be negative")
	}
	for _, name := range c.Logs {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
			problems = append(problems, fmt.Sprintf("invalid log name %q", name))
		}
	}
	for _, ep := range c.Network.Endpoints {
		if ep.Name == "" || ep.Port <= 0 || ep.Port > 65535 {
			problems = append(problems, fmt.Sprintf("invalid endpoint %q:%d", ep.Name, ep.Port))
		}
	}
	if c.Journal.Retention < 0 {
		problems = append(problems, "journal.retention must not be negative")
	}
	if c.Notify.MinInterval < 0 || c.Notify.Burst < 0 {
		problems = append(problems, "notify rate limits must not be negative")
	}
	if len(c.Notify.Email.To) > 0 && c.Notify.Email.Host == "" {
		problems = append(problems, "notify.email.host is required when recipients are set")
	}

	if len(problems) > 0 {
		return dwerrors.Wrap(dwerrors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Resolve makes a configured path absolute relative to the project root
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// StateDir is the absolute .devwatch directory of the project
func (c *Config) StateDir() string {
	return filepath.Join(c.Root, Dir)
}

// Save writes the configuration to the project's config file
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := Path(c.Root)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
