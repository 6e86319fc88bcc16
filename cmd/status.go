package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/devwatch"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a summary of the development environment",
	Long: `Show the readiness level, running processes, endpoint health, branch
and monitor state of the project.`,
	Example: `  devwatch status
  devwatch status --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := currentStatus(cmd.Context())
		if err != nil {
			return err
		}
		return writeStatus(cmd.OutOrStdout(), st, statusJSON)
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Exit non-zero when the environment has critical issues",
	Long: `Check whether development can start: there must be no critical issues
such as TypeScript errors or a failing build. Unavailable tools are not
critical.`,
	Example: `  devwatch ready && npm run dev`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := currentStatus(cmd.Context())
		if err != nil {
			return err
		}
		return checkReady(cmd.OutOrStdout(), st)
	},
}

// currentStatus asks a running monitor, or probes locally
func currentStatus(ctx context.Context) (devwatch.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return devwatch.Status{}, err
	}
	if client := monitorClient(cfg); client != nil {
		var st devwatch.Status
		err := client.Status(&st)
		return st, err
	}

	engine, err := newEngine()
	if err != nil {
		return devwatch.Status{}, err
	}
	return engine.Status(ctx)
}

func writeStatus(w io.Writer, st devwatch.Status, asJSON bool) error {
	if asJSON {
		return printJSON(w, st)
	}
	printStatus(w, st)
	return nil
}

func checkReady(w io.Writer, st devwatch.Status) error {
	if st.CanStart {
		fmt.Fprintf(w, "✅ %s is ready (%s, %d/100)\n", st.Project, st.Level, st.Score)
		return nil
	}
	for _, issue := range st.CriticalIssues {
		fmt.Fprintf(w, "❌ %s\n", issue)
	}
	return fmt.Errorf("%s is not ready: %d critical issue(s)", st.Project, len(st.CriticalIssues))
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(readyCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status in JSON format")
}
