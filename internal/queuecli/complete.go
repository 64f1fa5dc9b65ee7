package queuecli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete [item-id]",
	Short: "Report that an item's build finished, releasing its resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q: %w", args[0], err)
		}

		client := NewClient(GetSchedulerURL())
		released, err := client.Complete(id)
		if err != nil {
			return fmt.Errorf("complete failed: %w", err)
		}

		if !released {
			fmt.Printf("item %d held no reserved resources\n", id)
			return nil
		}
		fmt.Printf("released resources reserved by item %d\n", id)
		return nil
	},
}
