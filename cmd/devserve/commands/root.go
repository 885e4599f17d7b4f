// Package commands provides the CLI commands for devserve.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/devserve-run/devserve/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel string
	pretty   bool
)

var rootCmd = &cobra.Command{
	Use:   "devserve",
	Short: "devserve - locate and supervise a local dev server",
	Long: `devserve launches the right dev server for a frontend project
directory without knowing in advance which tool the project uses,
discovers the URL it listens on, and guarantees clean teardown.

Run 'devserve serve <dir>' to preview a project, or 'devserve daemon'
to expose the same operations over HTTP.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: pretty,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("devserve %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(staticCmd)
	rootCmd.AddCommand(daemonCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
