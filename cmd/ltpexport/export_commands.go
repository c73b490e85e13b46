package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ltpexport/internal/entity"
	"ltpexport/internal/metadata"
	"ltpexport/internal/queue"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var deleteFlag bool

	cmd := &cobra.Command{
		Use:   "export <entity-type> <uuid>",
		Short: "Stage one entity and queue it for ingest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entities, err := ctx.entityStore()
			if err != nil {
				return err
			}
			e, err := entities.Load(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queue.Backend) error {
				x, err := ctx.newExporter(q)
				if err != nil {
					return err
				}
				outcome, err := x.UpdateEntity(cmd.Context(), e, exportMode(deleteFlag))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]string{
						"outcome":   string(outcome),
						"directory": x.Directory(e),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", x.Directory(e), outcome)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deleteFlag, "delete", false, "Export a deletion tombstone")
	cmd.AddCommand(newExportAllCommand(ctx))
	return cmd
}

func newExportAllCommand(ctx *commandContext) *cobra.Command {
	var entityType string
	var deleteFlag bool

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Export every stored entity of a type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entities, err := ctx.entityStore()
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queue.Backend) error {
				x, err := ctx.newExporter(q)
				if err != nil {
					return err
				}
				summary, err := x.ExportAll(cmd.Context(), entities, entityType, exportMode(deleteFlag))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, summary)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d, skipped %d, failed %d\n", summary.Queued, summary.Skipped, summary.Failed)
				if summary.Failed > 0 {
					return fmt.Errorf("%d exports failed; see the log for details", summary.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "type", entity.TypeNode, "Entity type to export")
	cmd.Flags().BoolVar(&deleteFlag, "delete", false, "Export deletion tombstones")
	return cmd
}

func exportMode(deleteFlag bool) metadata.UpdateMode {
	if deleteFlag {
		return metadata.UpdateDelete
	}
	return metadata.UpdateCreate
}
