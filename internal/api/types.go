package api

import (
	"time"

	"ltpexport/internal/queue"
	"ltpexport/internal/worker"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID         int64             `json:"id"`
	Directory  string            `json:"directory"`
	EntityType string            `json:"entityType"`
	UUID       string            `json:"uuid"`
	Fields     map[string]string `json:"fields,omitempty"`
	Claimed    bool              `json:"claimed"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	ClaimedAt  string            `json:"claimedAt,omitempty"`
}

// QueueStats mirrors queue.Stats.
type QueueStats struct {
	Pending int `json:"pending"`
	Claimed int `json:"claimed"`
}

// QueueListResponse wraps queue listings.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
	Stats QueueStats  `json:"stats"`
}

// HealthResponse reports service state.
type HealthResponse struct {
	Status string         `json:"status"`
	System string         `json:"system"`
	Queue  *QueueStats    `json:"queue,omitempty"`
	Worker *worker.Status `json:"worker,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// EventRequest is a content repository notification.
type EventRequest struct {
	EntityType string `json:"entity_type"`
	UUID       string `json:"uuid"`
	Event      string `json:"event"`
}

// ExportResponse reports the outcome of an export request.
type ExportResponse struct {
	Outcome   string `json:"outcome"`
	Directory string `json:"directory"`
	RequestID string `json:"requestId,omitempty"`
}

// FromQueueItem converts a queue item into its transport form.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	out := QueueItem{
		ID:         item.ID,
		Directory:  item.Payload.Directory,
		EntityType: item.Payload.EntityType,
		UUID:       item.Payload.UUID,
		Fields:     item.Payload.Fields,
		Claimed:    item.Claimed(),
		CreatedAt:  formatTime(item.CreatedAt),
	}
	if item.ClaimedAt != nil {
		out.ClaimedAt = formatTime(*item.ClaimedAt)
	}
	return out
}

// FromQueueItems converts a slice of queue items.
func FromQueueItems(items []*queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromQueueItem(item))
	}
	return out
}

func fromStats(stats queue.Stats) QueueStats {
	return QueueStats{Pending: stats.Pending, Claimed: stats.Claimed}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
