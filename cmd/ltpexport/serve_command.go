package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ltpexport/internal/api"
	"ltpexport/internal/dirlock"
	"ltpexport/internal/logging"
	"ltpexport/internal/preflight"
	"ltpexport/internal/queue"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event webhook and the queue worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
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

			results := preflight.RunAll(signalCtx, cfg)
			for _, r := range results {
				if !r.Passed {
					logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
						logging.String("check", r.Name),
						logging.String("detail", r.Detail),
						logging.String(logging.FieldErrorHint, "run ltpexport preflight for details"),
					)
				}
			}
			if preflight.Failed(results) {
				return errPreflightFailed
			}

			return ctx.withQueue(func(q queue.Backend) error {
				x, err := ctx.newExporter(q)
				if err != nil {
					return err
				}
				entities, err := ctx.entityStore()
				if err != nil {
					return err
				}

				opts := api.ServerOptions{
					Bind:     cfg.API.Bind,
					Token:    cfg.API.Token,
					System:   cfg.Export.LTPSystem,
					Exporter: x,
					Entities: entities,
					Queue:    q,
					Logger:   logger,
				}
				if b := strings.TrimSpace(bind); b != "" {
					opts.Bind = b
				}

				if !noWorker {
					w, err := ctx.newWorker(q)
					if err != nil {
						return err
					}
					if _, err := w.ReclaimStale(signalCtx); err != nil {
						return fmt.Errorf("reclaim stale items: %w", err)
					}
					if err := w.Start(signalCtx); err != nil {
						return err
					}
					defer w.Stop()
					opts.Worker = w
				}

				server, err := api.NewServer(opts)
				if err != nil {
					return err
				}
				if err := server.Start(signalCtx); err != nil {
					return err
				}
				defer server.Stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", server.Addr())
				<-signalCtx.Done()
				logger.Info("shutting down")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override api.bind")
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Serve the webhook without draining the queue")
	return cmd
}
