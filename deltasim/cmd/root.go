// Package cmd provides the command-line interface for deltasim.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deltasim",
	Short: "deltasim runs event-driven hardware simulations.",
	Long: `deltasim runs the built-in test benches of the deltasim kernel ` +
		`and reports on the recordings they produce. Settings can also be ` +
		`given with DELTASIM_* environment variables or a .env file.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
