package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"ltpexport/internal/config"
	"ltpexport/internal/dirlock"
	"ltpexport/internal/entity"
	"ltpexport/internal/logging"
	"ltpexport/internal/ltp"
	"ltpexport/internal/queue"
	"ltpexport/internal/services"
)

// ConnectorFactory returns a fresh connector for one item.
type ConnectorFactory func() (ltp.Connector, error)

// Worker processes queue items one at a time.
type Worker struct {
	cfg          *config.Config
	queue        queue.Backend
	entities     entity.Repository
	newConnector ConnectorFactory
	locker       *dirlock.Locker
	logger       *slog.Logger

	pollInterval  time.Duration
	retryInterval time.Duration
	lease         time.Duration
	heartbeat     time.Duration

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item
	handled  int64
}

// New constructs a worker.
func New(cfg *config.Config, q queue.Backend, entities entity.Repository, newConnector ConnectorFactory, logger *slog.Logger) *Worker {
	lease := time.Duration(cfg.Queue.LeaseSeconds) * time.Second
	return &Worker{
		cfg:           cfg,
		queue:         q,
		entities:      entities,
		newConnector:  newConnector,
		locker:        dirlock.FromConfig(cfg.Lock).WithTimeout(time.Duration(cfg.Lock.WorkerTimeout) * time.Second),
		logger:        logging.NewComponentLogger(logger, "worker"),
		pollInterval:  time.Duration(cfg.Worker.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Worker.ErrorRetryInterval) * time.Second,
		lease:         lease,
		heartbeat:     lease / 3,
	}
}

// ProcessItem ingests one claimed item and writes the resulting identifiers
// back to its entity. The directory lock is always released before return.
func (w *Worker) ProcessItem(ctx context.Context, item *queue.Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	payload := item.Payload
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithDirectory(ctx, payload.Directory)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, w.logger)

	if err := payload.Validate(); err != nil {
		err = services.Wrap(services.ErrValidation, "worker", "process item", "invalid payload", err)
		logging.ErrorWithContext(logger, "queue item rejected", "payload_invalid",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "remove the item with 'ltpexport queue remove'"),
		)
		return err
	}

	conn, err := w.newConnector()
	if err != nil {
		logging.ErrorWithContext(logger, "connector unavailable", "connector_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check export.ltp_system in the config"),
		)
		return err
	}
	conn.SetDirectory(payload.Directory)
	dir := filepath.Join(conn.BaseURL(), payload.Directory)

	if err := w.locker.Acquire(ctx, dir); err != nil {
		logging.ErrorWithContext(logger, "could not lock export directory", "lock_timeout",
			logging.String("path", dir),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "another export or worker holds the directory; re-export the entity"),
		)
		return err
	}
	defer func() {
		if err := w.locker.Release(dir); err != nil {
			logger.Warn("lock release failed", logging.String("path", dir), logging.Error(err))
		}
	}()

	e, err := w.entities.Load(ctx, payload.EntityType, payload.UUID)
	if err != nil {
		eventType := "entity_load_failed"
		if errors.Is(err, services.ErrNotFound) {
			eventType = "entity_not_found"
		}
		logging.ErrorWithContext(logger, "entity unavailable, item dropped", eventType,
			logging.String("entity_type", payload.EntityType),
			logging.String("uuid", payload.UUID),
			logging.Error(err),
			logging.ErrorKind(err),
		)
		return err
	}

	started := time.Now()
	result, err := conn.StartIngest(services.WithStage(ctx, "ingest"))
	if err != nil {
		logging.ErrorWithContext(logger, "ingest failed", "ingest_failed",
			logging.String("system", conn.Config().System),
			logging.String("transfer_id", result.TransferID),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		return err
	}

	written := writeBack(e, payload.Fields, result)
	if err := w.entities.Save(ctx, e); err != nil {
		err = fmt.Errorf("save entity: %w", err)
		logging.ErrorWithContext(logger, "write-back failed", "writeback_failed",
			logging.String("transfer_id", result.TransferID),
			logging.String("sip_id", result.SIPID),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "record the identifiers manually; the archive was ingested"),
		)
		return err
	}

	logger.Info("ingest recorded",
		logging.String("system", conn.Config().System),
		logging.String("transfer_id", result.TransferID),
		logging.String("sip_id", result.SIPID),
		logging.Int("fields_written", written),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "ingest_recorded"),
	)
	return nil
}

// writeBack copies result identifiers into the entity fields named by the
// payload. Keys without a value are skipped.
func writeBack(e *entity.Entity, fields map[string]string, result ltp.Result) int {
	written := 0
	for key, field := range fields {
		if field == "" {
			continue
		}
		value, ok := result.Value(key)
		if !ok {
			continue
		}
		e.SetField(field, value)
		written++
	}
	return written
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrTerminalBackend):
		return "inspect the transfer in the LTP dashboard and re-export the entity"
	case errors.Is(err, services.ErrTransport):
		return "check the backend host and credentials, then re-export"
	case errors.Is(err, services.ErrValidation):
		return "the staged unit is incomplete; re-export the entity"
	default:
		return "check logs for details"
	}
}
