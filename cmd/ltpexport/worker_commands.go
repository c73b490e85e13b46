package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ltpexport/internal/dirlock"
	"ltpexport/internal/queue"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Drain the export queue into the LTP backend",
	}

	workerCmd.AddCommand(newWorkerRunCommand(ctx))
	workerCmd.AddCommand(newWorkerProcessCommand(ctx))

	return workerCmd
}

func newWorkerRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			instance := dirlock.NewInstance(cfg.InstanceLockPath())
			if err := instance.Lock(); err != nil {
				return err
			}
			defer instance.Unlock()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return ctx.withQueue(func(q queue.Backend) error {
				w, err := ctx.newWorker(q)
				if err != nil {
					return err
				}
				return w.Run(signalCtx)
			})
		},
	}
}

func newWorkerProcessCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process queued items once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queue.Backend) error {
				w, err := ctx.newWorker(q)
				if err != nil {
					return err
				}
				if _, err := w.ReclaimStale(cmd.Context()); err != nil {
					return fmt.Errorf("reclaim stale items: %w", err)
				}
				processed, err := w.RunOnce(cmd.Context(), limit)
				if err != nil {
					return err
				}
				status := w.Status()
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{
						"processed":  processed,
						"last_error": status.LastError,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d items\n", processed)
				if status.LastError != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Last error: %s\n", status.LastError)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items to process (0 processes all)")
	return cmd
}
