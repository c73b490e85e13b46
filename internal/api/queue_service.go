package api

import (
	"context"

	"ltpexport/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context) ([]*queue.Item, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns every queue item in claim order.
func (s *QueueService) List(ctx context.Context) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Stats returns pending and claimed counts.
func (s *QueueService) Stats(ctx context.Context) (QueueStats, error) {
	if s == nil || s.store == nil {
		return QueueStats{}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return fromStats(stats), nil
}

// ActiveDirectories returns the directory names that still have a queue item,
// claimed or not. Staging cleanup keeps those units.
func (s *QueueService) ActiveDirectories(ctx context.Context) (map[string]struct{}, error) {
	if s == nil || s.store == nil {
		return map[string]struct{}{}, nil
	}
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(items))
	for _, item := range items {
		active[item.Payload.Directory] = struct{}{}
	}
	return active, nil
}
