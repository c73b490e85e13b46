package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Payload is the wire shape of a queue item.
type Payload struct {
	Directory  string            `json:"directory"`
	EntityType string            `json:"entity_type"`
	UUID       string            `json:"uuid"`
	Fields     map[string]string `json:"fields"`
}

// Validate reports payloads that a worker could not act on.
func (p Payload) Validate() error {
	switch {
	case p.Directory == "":
		return errors.New("payload directory is empty")
	case p.EntityType == "":
		return errors.New("payload entity_type is empty")
	case p.UUID == "":
		return errors.New("payload uuid is empty")
	}
	return nil
}

func encodePayload(p Payload) (string, error) {
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func decodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

// Item is a persisted payload.
type Item struct {
	ID        int64
	Payload   Payload
	CreatedAt time.Time
	// ClaimedAt is the start (or last heartbeat) of the current lease; nil
	// while the item is available.
	ClaimedAt *time.Time

	token string
}

// Claimed reports whether a worker currently holds the item.
func (i *Item) Claimed() bool {
	return i != nil && i.ClaimedAt != nil
}

// Stats counts items by availability.
type Stats struct {
	Pending int `json:"pending"`
	Claimed int `json:"claimed"`
}

// Total is Pending plus Claimed.
func (s Stats) Total() int {
	return s.Pending + s.Claimed
}

// ExportQueue is the minimal contract the export pipeline depends on.
type ExportQueue interface {
	Enqueue(ctx context.Context, p Payload) (*Item, error)
	// Claim leases the oldest available item. It returns nil, nil when the
	// queue has nothing available.
	Claim(ctx context.Context) (*Item, error)
	// Delete removes a claimed item.
	Delete(ctx context.Context, item *Item) error
	// Release returns a claimed item to availability.
	Release(ctx context.Context, item *Item) error
	List(ctx context.Context) ([]*Item, error)
	Close() error
}

// Backend adds the maintenance operations used by workers and the CLI.
type Backend interface {
	ExportQueue
	// Heartbeat extends the lease of a claimed item.
	Heartbeat(ctx context.Context, item *Item) error
	// ReclaimStale releases items whose lease started before cutoff.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) (int64, error)
}
