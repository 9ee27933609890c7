package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/cartwatch/internal/tasks"
)

func newTasksCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the task catalogue with each task's window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enabled, err := tasks.Catalogue(&tasks.Deps{Tasks: o.cfg.Tasks()})
			if err != nil {
				return err
			}
			byName := make(map[string]tasks.Task, len(enabled))
			for _, t := range enabled {
				byName[t.Name()] = t
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tENABLED\tWINDOW")
			for _, name := range tasks.Names {
				t, ok := byName[name]
				window := "-"
				if ok {
					window = t.Window().String()
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\n", name, ok, window)
			}
			return tw.Flush()
		},
	}
}
