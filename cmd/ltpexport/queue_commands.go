package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ltpexport/internal/api"
	"ltpexport/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the export queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueReclaimCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queue.Backend) error {
				svc := api.NewQueueService(q)
				items, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				stats, err := svc.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.QueueListResponse{Items: items, Stats: stats})
				}

				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Directory", "Type", "UUID", "Claimed", "Created"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d pending, %d claimed\n", stats.Pending, stats.Claimed)
				return nil
			})
		},
	}
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.Directory,
			item.EntityType,
			item.UUID,
			yesNo(item.Claimed),
			item.CreatedAt,
		})
	}
	return rows
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "remove <directory>",
		Short: "Remove pending items for an export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queue.Backend) error {
				removed, err := queue.RemoveByDirectory(cmd.Context(), q, args[0], all)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"directory": args[0], "removed": removed})
				}
				if removed == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No pending items for %s\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items for %s\n", removed, args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every matching item instead of the oldest")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every queue item, claimed or not",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queue.Backend) error {
				removed, err := q.Clear(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d items\n", removed)
				return nil
			})
		},
	}
}

func newQueueReclaimCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return claimed items with expired leases to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			age := olderThan
			if !cmd.Flags().Changed("older-than") {
				age = time.Duration(cfg.Queue.LeaseSeconds) * time.Second
			}
			return ctx.withQueue(func(q queue.Backend) error {
				reclaimed, err := q.ReclaimStale(cmd.Context(), time.Now().Add(-age))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"reclaimed": reclaimed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d items\n", reclaimed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Lease age to reclaim (defaults to queue.lease_seconds; 0 reclaims every claim)")
	return cmd
}
