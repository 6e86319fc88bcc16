package cmd

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Continuous monitoring of the development environment",
	Long: `Manage the monitor that continuously watches the project.

The monitor:
  - Follows the configured dev logs and classifies new lines
  - Takes a snapshot every interval and reports process, network and readiness transitions
  - Records events to the journal and serves them on the control socket
  - Optionally streams events over websocket and sends Discord/email notifications`,
	Example: `  # Start monitor daemon
  devwatch watch start

  # Check monitor status
  devwatch watch status

  # Show recent events
  devwatch watch events

  # Stop monitor daemon
  devwatch watch stop

  # View monitor logs
  devwatch watch logs`,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
