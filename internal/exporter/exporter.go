package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"ltpexport/internal/config"
	"ltpexport/internal/dirlock"
	"ltpexport/internal/entity"
	"ltpexport/internal/fieldconfig"
	"ltpexport/internal/logging"
	"ltpexport/internal/ltp"
	"ltpexport/internal/metadata"
	"ltpexport/internal/queue"
	"ltpexport/internal/services"
	"ltpexport/internal/staging"
)

// Outcome describes what UpdateEntity did with an entity.
type Outcome string

const (
	OutcomeQueued      Outcome = "queued"
	OutcomeDisabled    Outcome = "disabled"
	OutcomeUnpublished Outcome = "unpublished"
)

// ConnectorFactory returns a fresh connector for one export unit.
type ConnectorFactory func() (ltp.Connector, error)

// Lister enumerates stored entities of a type.
type Lister interface {
	List(ctx context.Context, entityType string) ([]*entity.Entity, error)
}

// Exporter stages SIPs and enqueues them for ingest.
type Exporter struct {
	cfg          *config.Config
	queue        queue.ExportQueue
	extractor    *metadata.Extractor
	newConnector ConnectorFactory
	locker       *dirlock.Locker
	logger       *slog.Logger

	// units serializes in-process exports of one directory from dedup
	// through enqueue.
	units sync.Map
}

// New builds an exporter. The field configuration is parsed here so a
// malformed mapping fails before any export touches the filesystem.
func New(cfg *config.Config, q queue.ExportQueue, newConnector ConnectorFactory, logger *slog.Logger) (*Exporter, error) {
	mapping, err := fieldconfig.Parse(cfg.Export.FieldConfiguration)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		cfg:          cfg,
		queue:        q,
		extractor:    metadata.NewExtractor(mapping),
		newConnector: newConnector,
		locker:       dirlock.FromConfig(cfg.Lock),
		logger:       logging.NewComponentLogger(logger, "exporter"),
	}, nil
}

// Directory returns the export unit name for e.
func (x *Exporter) Directory(e *entity.Entity) string {
	return entity.UID(x.cfg.Export.SiteName, e)
}

// UpdateEntity exports e. Disabled export and unpublished entities (for
// create/update only) are logged no-ops. An entity whose bundle has no
// configured fields returns services.ErrConfiguration before anything is
// written.
func (x *Exporter) UpdateEntity(ctx context.Context, e *entity.Entity, mode metadata.UpdateMode) (Outcome, error) {
	if e == nil {
		return "", services.Wrap(services.ErrValidation, "exporter", "update entity", "entity is nil", nil)
	}
	directory := x.Directory(e)
	ctx = services.WithDirectory(ctx, directory)
	logger := logging.WithContext(ctx, x.logger).With(
		logging.String("entity_type", e.Type),
		logging.String("uuid", e.UUID),
		logging.String("mode", mode.String()),
	)

	if !x.cfg.Export.Enabled {
		logger.Info("export disabled, entity skipped", logging.String(logging.FieldEventType, "export_disabled"))
		return OutcomeDisabled, nil
	}
	if mode != metadata.UpdateDelete && x.cfg.Export.OnlyPublished && !e.Published {
		logger.Info("entity unpublished, skipped", logging.String(logging.FieldEventType, "export_unpublished"))
		return OutcomeUnpublished, nil
	}
	if !x.extractor.Eligible(e) {
		return "", services.Wrap(services.ErrConfiguration, "exporter", "update entity",
			fmt.Sprintf("bundle %q has no configured fields", e.Bundle), nil)
	}

	unit := x.unitMutex(directory)
	unit.Lock()
	defer unit.Unlock()

	conn, err := x.newConnector()
	if err != nil {
		return "", err
	}
	conn.SetDirectory(directory)
	store := staging.NewStore(conn.BaseURL())
	unitPath := filepath.Join(conn.BaseURL(), directory)

	if err := x.acquire(ctx, logger, unitPath, "pre cleanup"); err != nil {
		return "", err
	}
	if _, err := queue.RemoveByDirectory(ctx, x.queue, directory, false); err != nil {
		x.release(logger, unitPath)
		return "", fmt.Errorf("remove pending item: %w", err)
	}
	if err := store.Purge(directory); err != nil {
		x.release(logger, unitPath)
		return "", err
	}
	if err := x.acquire(ctx, logger, unitPath, "post cleanup"); err != nil {
		return "", err
	}

	records, payload, err := x.extractor.Extract(e, mode)
	if err != nil {
		x.release(logger, unitPath)
		return "", err
	}
	ref := ltp.EntityRef{Type: e.Type, ID: e.ID, UUID: e.UUID}
	if err := conn.WriteSIP(ctx, ref, records, payload); err != nil {
		x.release(logger, unitPath)
		logging.ErrorWithContext(logger, "sip write failed", "sip_write_failed",
			logging.Error(err),
			logging.ErrorKind(err),
		)
		return "", err
	}
	x.release(logger, unitPath)

	item, err := x.queue.Enqueue(ctx, queue.Payload{
		Directory:  directory,
		EntityType: e.Type,
		UUID:       e.UUID,
		Fields:     conn.Config().WriteBackFields(),
	})
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	logger.Info("export queued",
		logging.String("system", conn.Config().System),
		logging.Int("records", len(records)),
		logging.Bool("payload", !payload.Empty()),
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldEventType, "export_queued"),
	)
	return OutcomeQueued, nil
}

func (x *Exporter) unitMutex(directory string) *sync.Mutex {
	mu, _ := x.units.LoadOrStore(directory, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (x *Exporter) acquire(ctx context.Context, logger *slog.Logger, path, phase string) error {
	if err := x.locker.Acquire(ctx, path); err != nil {
		logging.ErrorWithContext(logger, "could not lock export directory, export aborted", "lock_timeout",
			logging.String("path", path),
			logging.String("phase", phase),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "a worker may be ingesting this unit; retry the export later"),
		)
		return err
	}
	return nil
}

func (x *Exporter) release(logger *slog.Logger, path string) {
	if err := x.locker.Release(path); err != nil {
		logger.Warn("lock release failed", logging.String("path", path), logging.Error(err))
	}
}
