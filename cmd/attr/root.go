package main

import (
	"fmt"
	"os"

	"github.com/goodtune/attr/internal/commands"
	"github.com/spf13/cobra"
)

var (
	version    = commands.BuildVersion()
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "attr",
	Short: "ATTR - daily playtime quota keeper for exaroton game servers",
	Long: `ATTR watches a game server hosted on exaroton, charges online players
against a daily playtime allowance, carries unused time over as rollover,
bans players who run out until the next day and lets them wager their
remaining time from chat.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to server command when no subcommand is provided
		return runServer(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
