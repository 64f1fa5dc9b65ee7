package queuecli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listApproximate bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items currently tracked by the build queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetSchedulerURL())

		var items []ItemView
		var err error
		if listApproximate {
			items, err = client.ApproximateItems()
		} else {
			items, err = client.Items()
		}
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTASK\tSTAGE\tQUEUED")
		for _, item := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", item.ID, item.Task, item.Stage, humanize.Time(item.QueuedSince))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&listApproximate, "approximate", false, "use the cached, lock-free snapshot instead of the live view")
}
