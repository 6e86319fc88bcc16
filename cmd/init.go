package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/log"
)

var (
	initForce          bool
	initLogs           []string
	initDiscordWebhook string
)

var initCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"i"},
	Short:   "Write a default devwatch configuration",
	Long: `Create .devwatch/config.yaml in the project with the default settings
and the .devwatch/logs directory the log watchers read from.

An existing configuration is kept unless --force is given.`,
	Example: `  # Initialize with defaults
  devwatch init

  # Watch two logs and notify a Discord channel
  devwatch init --log web --log api --discord-webhook https://discord.com/api/webhooks/...`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(projectDir)
		if err != nil {
			return err
		}
		path, err := initProject(cfg, initLogs, initDiscordWebhook, initForce)
		if err != nil {
			return err
		}
		log.Info("devwatch initialized: %s", path)
		return nil
	},
}

// initProject writes the configuration and creates the logs directory
func initProject(cfg *config.Config, logs []string, webhook string, force bool) (string, error) {
	path := config.Path(cfg.Root)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if len(logs) > 0 {
		cfg.Logs = logs
	}
	if webhook != "" {
		cfg.Notify.Discord.WebhookURL = webhook
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := cfg.Save(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.Resolve(cfg.LogsDir), 0750); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}
	return path, nil
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	initCmd.Flags().StringSliceVar(&initLogs, "log", nil, "Log names to watch (can be specified multiple times)")
	initCmd.Flags().StringVar(&initDiscordWebhook, "discord-webhook", "", "Discord webhook URL for notifications")
}
