// Package commands provides the CLI commands for Tandem.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags.
var (
	logLevel string
	workDir  string
)

var rootCmd = &cobra.Command{
	Use:   "tandem",
	Short: "Tandem - conversational task execution",
	Long: `Tandem completes user tasks through a planner that breaks them into
steps and a code interpreter that executes them.

Run 'tandem chat' to start a conversation, or 'tandem models' to list
the configured models.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Best effort; a missing .env is fine.
		_ = godotenv.Load()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "directory", "C", "", "Working directory")

	rootCmd.SetVersionTemplate(fmt.Sprintf("tandem %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getWorkDir returns the working directory from the flag or the process
// cwd.
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}
