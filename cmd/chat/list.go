package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		sums, err := newClient().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		if len(sums) == 0 {
			fmt.Println(dimStyle.Render("No saved conversations."))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%d conversations", len(sums))))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for i, sum := range sums {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				indexStyle.Render(fmt.Sprintf("%d.", i+1)),
				titleStyle.Render(sum.Name),
				dimStyle.Render(sum.Updated.Local().Format("2006-01-02 15:04")),
				idStyle.Render(sum.ID))
		}
		return w.Flush()
	},
}
