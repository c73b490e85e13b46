package exporter

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"ltpexport/internal/logging"
	"ltpexport/internal/metadata"
)

// Summary counts the outcomes of a batch export.
type Summary struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ExportAll exports every stored entity of entityType. A failing entity is
// logged and counted; it never stops the batch. Distinct entities map to
// distinct directories, and the dedup step deletes by directory, so parallel
// workers never see each other's pending items.
func (x *Exporter) ExportAll(ctx context.Context, entities Lister, entityType string, mode metadata.UpdateMode) (Summary, error) {
	list, err := entities.List(ctx, entityType)
	if err != nil {
		return Summary{}, err
	}

	var (
		mu      sync.Mutex
		summary Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, x.cfg.Export.BatchConcurrency))
	for _, e := range list {
		g.Go(func() error {
			outcome, err := x.UpdateEntity(gctx, e, mode)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				x.logger.Warn("entity export failed",
					logging.String("entity_type", e.Type),
					logging.String("uuid", e.UUID),
					logging.Error(err),
					logging.ErrorKind(err),
					logging.String(logging.FieldEventType, "export_failed"),
				)
			case outcome == OutcomeQueued:
				summary.Queued++
			default:
				summary.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	x.logger.Info("batch export finished",
		logging.String("entity_type", entityType),
		logging.Int("queued", summary.Queued),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
	)
	return summary, ctx.Err()
}
