package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running: %s (pid %d)\n", yesNo(status.Running), status.PID)
			fmt.Fprintf(out, "Coordinator running: %s\n", yesNo(status.Coordinator.Running))
			if status.Coordinator.LastTick != "" {
				fmt.Fprintf(out, "Last poll: %s\n", status.Coordinator.LastTick)
			}
			if status.Coordinator.LastError != "" {
				fmt.Fprintf(out, "Last poll error: %s\n", status.Coordinator.LastError)
			}
			fmt.Fprintf(out, "Queue database: %s\n", status.QueueDBPath)
			fmt.Fprintf(out, "Observers: %d\n", status.Observers)

			if len(status.QueueStats) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			rows := buildQueueStatusRows(status.QueueStats)
			writeRows(out, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", stats[name])})
	}
	return rows
}
