package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ltpexport/internal/logging"
	"ltpexport/internal/queue"
)

// RunOnce claims and processes up to limit items (all available items when
// limit <= 0). Every processed item is deleted exactly once, whatever
// ProcessItem returned. An item claimed after ctx is cancelled is released
// unprocessed. The count of processed items is returned.
func (w *Worker) RunOnce(ctx context.Context, limit int) (int, error) {
	processed := 0
	for limit <= 0 || processed < limit {
		item, err := w.queue.Claim(ctx)
		if err != nil {
			return processed, err
		}
		if item == nil {
			return processed, nil
		}
		if ctx.Err() != nil {
			if err := w.queue.Release(context.WithoutCancel(ctx), item); err != nil {
				w.logger.Warn("release of unprocessed item failed", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
			}
			return processed, ctx.Err()
		}

		w.setLastItem(item)
		procErr := w.processWithHeartbeat(ctx, item)
		w.setLastError(procErr)
		if err := w.queue.Delete(context.WithoutCancel(ctx), item); err != nil {
			logging.WarnWithContext(w.logger, "queue item delete failed", "queue_delete_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the lease expired during processing; the item may run again"),
				logging.String(logging.FieldImpact, "duplicate ingest possible"),
			)
		}
		processed++
	}
	return processed, nil
}

func (w *Worker) processWithHeartbeat(ctx context.Context, item *queue.Item) error {
	if w.heartbeat <= 0 {
		return w.ProcessItem(ctx, item)
	}
	hbCtx, hbCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.heartbeatLoop(hbCtx, item)
	}()
	err := w.ProcessItem(ctx, item)
	hbCancel()
	<-done
	return err
}

func (w *Worker) heartbeatLoop(ctx context.Context, item *queue.Item) {
	ticker := time.NewTicker(w.heartbeat)
	defer ticker.Stop()
	logger := w.logger.With(logging.Int64(logging.FieldItemID, item.ID))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.Heartbeat(ctx, item); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

// ReclaimStale returns items whose lease expired to the queue.
func (w *Worker) ReclaimStale(ctx context.Context) (int64, error) {
	if w.lease <= 0 {
		return 0, nil
	}
	reclaimed, err := w.queue.ReclaimStale(ctx, time.Now().Add(-w.lease))
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		w.logger.Info("reclaimed stale items",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "lease_reclaimed"),
		)
	}
	return reclaimed, nil
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		logging.Duration("poll_interval", w.pollInterval),
		logging.Duration("lease", w.lease),
	)
	batch := w.cfg.Worker.BatchSize
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("reclaim stale items failed; stuck items may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lease_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue backend access"),
			)
		}

		processed, err := w.RunOnce(ctx, batch)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.handleClaimError(ctx, err)
			continue
		}
		if processed == 0 {
			w.wait(ctx, w.pollInterval)
		}
	}
}

// Start runs Run in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_ = w.Run(runCtx)
	}()
	return nil
}

// Stop cancels background processing and waits for the current item.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Worker) handleClaimError(ctx context.Context, err error) {
	w.setLastError(err)
	logging.ErrorWithContext(w.logger, "failed to claim queue item", "queue_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue backend access"),
	)
	w.wait(ctx, w.retryInterval)
}

func (w *Worker) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Logger returns the worker's component logger.
func (w *Worker) Logger() *slog.Logger {
	return w.logger
}
