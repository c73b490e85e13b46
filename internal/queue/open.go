package queue

import (
	"fmt"

	"ltpexport/internal/config"
	"ltpexport/internal/services"
)

// Open returns the backend selected by queue.backend.
func Open(cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "queue", "open", "configuration unavailable", nil)
	}
	switch cfg.Queue.Backend {
	case "", config.QueueBackendSQLite:
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		store, err := OpenStore(cfg.QueuePath())
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.QueueBackendRedis:
		q, err := OpenRedis(cfg.Queue.RedisURL, cfg.Queue.RedisKey)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "queue", "open",
			fmt.Sprintf("unknown queue backend %q", cfg.Queue.Backend), nil)
	}
}
