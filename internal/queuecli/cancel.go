package queuecli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [task-name]",
	Short: "Withdraw a task's queued item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetSchedulerURL())
		cancelled, err := client.Cancel(args[0])
		if err != nil {
			return fmt.Errorf("cancel failed: %w", err)
		}

		if !cancelled {
			fmt.Printf("no queued item found for %s\n", args[0])
			return nil
		}
		fmt.Printf("cancelled queued item for %s\n", args[0])
		return nil
	},
}
