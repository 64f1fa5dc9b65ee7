package queuecli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var scheduleQuietPeriod time.Duration

var scheduleCmd = &cobra.Command{
	Use:   "schedule [task-name]",
	Short: "Admit a task into the build queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetSchedulerURL())
		item, err := client.Schedule(args[0], scheduleQuietPeriod)
		if err != nil {
			return fmt.Errorf("schedule failed: %w", err)
		}

		fmt.Printf("queued item #%d for %s (stage: %s)\n", item.ID, item.Task, item.Stage)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().DurationVarP(&scheduleQuietPeriod, "quiet-period", "q", 0, "delay before the item leaves waiting")
}
