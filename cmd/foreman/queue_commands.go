package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"foreman/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the phase queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStartCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			phases, err := ctx.client().QueueList(cmd.Context(), listStatuses)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.QueueListResponse{Phases: phases})
			}
			if len(phases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			writeRows(cmd.OutOrStdout(),
				[]string{"ID", "Parent", "Phase", "Status", "Ref", "Error"},
				buildQueueListRows(phases),
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildQueueListRows(phases []api.PhaseView) [][]string {
	rows := make([][]string, 0, len(phases))
	for _, phase := range phases {
		rows = append(rows, []string{
			strconv.FormatInt(phase.ID, 10),
			phase.ParentID,
			strconv.Itoa(phase.PhaseNumber),
			phase.Status,
			phase.ExternalRef,
			truncate(phase.ErrorMessage, 60),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var parentID string
	var phases int
	var payload string
	var priority int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enqueue a chain of phases for a parent",
		Long: "Enqueue a linear chain of phases. The first phase is immediately " +
			"ready; each later phase depends on the one before it. When no parent " +
			"id is given a new one is generated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if phases < 1 {
				return errors.New("--phases must be at least 1")
			}
			if payload != "" && !json.Valid([]byte(payload)) {
				return errors.New("--payload must be valid JSON")
			}
			parent := strings.TrimSpace(parentID)
			if parent == "" {
				parent = uuid.NewString()
			}

			client := ctx.client()
			created := make([]api.PhaseView, 0, phases)
			for n := 1; n <= phases; n++ {
				req := api.EnqueueRequest{
					ParentID:    parent,
					PhaseNumber: n,
					Priority:    priority,
				}
				if payload != "" {
					req.Payload = json.RawMessage(payload)
				}
				if n > 1 {
					dep := n - 1
					req.DependsOnPhase = &dep
				}
				view, err := client.Enqueue(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("enqueue phase %d: %w", n, err)
				}
				created = append(created, view)
			}

			if jsonOutput {
				return writeJSON(cmd, api.QueueListResponse{Phases: created})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d phases for parent %s\n", len(created), parent)
			for _, view := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "  phase %d: id %d (%s)\n", view.PhaseNumber, view.ID, view.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent identifier (generated when empty)")
	cmd.Flags().IntVar(&phases, "phases", 1, "Number of phases in the chain")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload attached to each phase")
	cmd.Flags().IntVar(&priority, "priority", 0, "Queue priority (higher runs first)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one phase in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePhaseID(args[0])
			if err != nil {
				return err
			}
			phase, err := ctx.client().QueueGet(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, api.PhaseResponse{Phase: phase})
		},
	}
}

func newQueueStartCommand(ctx *commandContext) *cobra.Command {
	var externalRef string

	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Mark a ready phase as running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePhaseID(args[0])
			if err != nil {
				return err
			}
			phase, err := ctx.client().Start(cmd.Context(), id, externalRef)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Phase %d (parent %s, phase %d) is now running\n",
				phase.ID, phase.ParentID, phase.PhaseNumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&externalRef, "ref", "", "External work item reference to record")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove phases from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			for _, arg := range args {
				id, err := parsePhaseID(arg)
				if err != nil {
					return err
				}
				if err := client.Remove(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Phase %d: %v\n", id, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Phase %d removed\n", id)
			}
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := ctx.client().Clear(cmd.Context(), completedOnly)
			if err != nil {
				return err
			}
			label := "phases"
			if completedOnly {
				label = "completed phases"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Remove only completed phases")
	return cmd
}

func parsePhaseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid phase id %q", arg)
	}
	return id, nil
}
