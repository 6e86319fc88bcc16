/*
Copyright © 2023 dimas maulana dimasmaulana0305@gmail.com
*/

// Package cmd provides command-line interface commands for devwatch
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/devwatch/internal/log"
)

var projectDir string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "devwatch",
	Short: "Development environment observer",
	Long: `devwatch - observe a local development environment

Inspects the running dev processes, local endpoints, code quality tools
and version control state of a project, and continuously watches its
logs to report what changed.

Features:
  • One-shot environment snapshots with readiness scoring
  • Background monitor with process, network and readiness transitions
  • Classified log tailing
  • Event journal, websocket stream and Discord/email notifications`,
	Example: `  # Take a snapshot of the current project
  devwatch scan

  # Check whether the environment is ready for work
  devwatch ready

  # Start the background monitor
  devwatch watch start

  # Follow the monitor log
  devwatch watch logs`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// Enable debug mode if flag is set
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			log.SetDebugMode(true)
			log.Debug("Debug mode enabled")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory to observe")
}
