package queuecli

import (
	"os"

	"github.com/spf13/cobra"
)

var schedulerURL string

var rootCmd = &cobra.Command{
	Use:     "queuectl",
	Short:   "queuectl - inspect and drive the build queue scheduler",
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&schedulerURL, "scheduler", "http://localhost:8080", "scheduler API URL")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(completeCmd)
}

func initConfig() {
	if env := os.Getenv("BUILDQUEUE_SCHEDULER_URL"); env != "" && schedulerURL == "http://localhost:8080" {
		schedulerURL = env
	}
}

// GetSchedulerURL returns the configured scheduler API URL.
func GetSchedulerURL() string {
	return schedulerURL
}
