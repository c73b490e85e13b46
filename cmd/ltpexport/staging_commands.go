package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ltpexport/internal/api"
	"ltpexport/internal/queue"
	"ltpexport/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staged export units",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staged export units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			baseURL := cfg.BaseURL()
			entries, err := staging.ListDirectories(baseURL)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			var totalSize int64
			for _, e := range entries {
				totalSize += e.Size
			}
			if ctx.JSONMode() {
				if entries == nil {
					entries = []staging.Entry{}
				}
				return writeJSON(cmd, map[string]any{
					"base_url":         baseURL,
					"directories":      entries,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No staged export units found")
				return nil
			}
			fmt.Fprintf(out, "Base path: %s\n\n", baseURL)
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Directory,
					formatDuration(time.Since(e.ModTime).Truncate(time.Minute)),
					humanize.IBytes(uint64(max(e.Size, 0))),
					yesNo(e.Locked),
					yesNo(e.Archived),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Directory", "Age", "Size", "Locked", "Archived"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "\nTotal: %d units, %s\n", len(entries), humanize.IBytes(uint64(max(totalSize, 0))))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var orphaned bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale or orphaned export units",
		Long: `Remove staged export units that are no longer needed.

By default, removes units (and their archives) not modified within --max-age.

Use --orphaned to instead remove units that have no queue item. Locked units
are always kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queue.Backend) error {
				req := api.CleanStagingRequest{
					BaseURL:  cfg.BaseURL(),
					MaxAge:   maxAge,
					Orphaned: orphaned,
					Logger:   logger,
				}
				if orphaned {
					req.Active = api.NewQueueService(q)
				}
				result, err := api.CleanStagingDirectories(cmd.Context(), req)
				if err != nil {
					return err
				}
				if !result.Configured {
					return errors.New("export base path is not configured")
				}
				if ctx.JSONMode() {
					return writeStagingCleanJSON(cmd, result.Cleanup)
				}
				return printStagingCleanResult(cmd, result.Cleanup, result.Scope)
			})
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 7*24*time.Hour, "Remove units older than this")
	cmd.Flags().BoolVar(&orphaned, "orphaned", false, "Remove units without a queue item instead")
	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanResult, label string) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintf(out, "No %s entries to clean\n", label)
		return nil
	}
	fmt.Fprintf(out, "Removed %d %s entries", len(result.Removed), label)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, ", skipped %d locked", len(result.Skipped))
	}
	fmt.Fprintln(out)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
	}
	return nil
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.CleanResult) error {
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
	}
	return writeJSON(cmd, map[string]any{
		"removed": len(result.Removed),
		"skipped": len(result.Skipped),
		"errors":  errs,
	})
}

func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
