package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"foreman/internal/api"
	"foreman/internal/broadcast"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live queue updates from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			watchCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			return ctx.client().Events(watchCtx, func(payload []byte) error {
				if raw {
					fmt.Fprintln(out, string(payload))
					return nil
				}

				var envelope broadcast.Envelope
				if err := json.Unmarshal(payload, &envelope); err != nil {
					return fmt.Errorf("decode event: %w", err)
				}
				var state api.QueueState
				if err := json.Unmarshal(envelope.Data, &state); err != nil {
					return fmt.Errorf("decode queue state: %w", err)
				}

				fmt.Fprintf(out, "queue update: %s\n", summarizeCounts(state.Counts))
				for _, phase := range state.Phases {
					line := fmt.Sprintf("  [%d] %s phase %d: %s", phase.ID, phase.ParentID, phase.PhaseNumber, phase.Status)
					if phase.ErrorMessage != "" {
						line += " (" + truncate(phase.ErrorMessage, 60) + ")"
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw event envelopes")
	return cmd
}

func summarizeCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "empty"
	}
	rows := buildQueueStatusRows(counts)
	summary := ""
	for i, row := range rows {
		if i > 0 {
			summary += ", "
		}
		summary += fmt.Sprintf("%s=%s", row[0], row[1])
	}
	return summary
}
