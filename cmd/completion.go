package cmd

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
)

// validLogNames returns the log names known for the project for shell
// completion of log arguments and --log flags.
func validLogNames(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names, err := getAvailableLogs(cfg)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// getAvailableLogs lists the configured log names plus every *.log file in
// the project's logs directory, without the extension.
func getAvailableLogs(cfg *config.Config) ([]string, error) {
	seen := make(map[string]bool)
	for _, name := range cfg.Logs {
		seen[name] = true
	}

	entries, err := os.ReadDir(cfg.Resolve(cfg.LogsDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		seen[strings.TrimSuffix(entry.Name(), ".log")] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for devwatch.

To load completions:

Bash:

  $ source <(devwatch completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ devwatch completion bash > /etc/bash_completion.d/devwatch
  # macOS:
  $ devwatch completion bash > $(brew --prefix)/etc/bash_completion.d/devwatch

Zsh:

  $ devwatch completion zsh > "${fpath[1]}/_devwatch"

  # You will need to start a new shell for this setup to take effect.

Fish:

  $ devwatch completion fish | source

PowerShell:

  PS> devwatch completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		var err error
		switch args[0] {
		case "bash":
			err = cmd.Root().GenBashCompletion(out)
		case "zsh":
			err = cmd.Root().GenZshCompletion(out)
		case "fish":
			err = cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			err = cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		if err != nil {
			// Error is logged but not fatal for completion generation
			cmd.PrintErrf("Error generating completion: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
