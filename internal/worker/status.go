package worker

import (
	"time"

	"ltpexport/internal/queue"
)

// Status summarizes worker activity for health output.
type Status struct {
	Running   bool      `json:"running"`
	Processed int64     `json:"processed"`
	LastError string    `json:"last_error,omitempty"`
	LastItem  *LastItem `json:"last_item,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// LastItem identifies the most recently claimed item.
type LastItem struct {
	ID        int64  `json:"id"`
	Directory string `json:"directory"`
}

// Status returns a snapshot of the worker.
func (w *Worker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := Status{Running: w.running, Processed: w.handled, CheckedAt: time.Now().UTC()}
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
	}
	if w.lastItem != nil {
		st.LastItem = &LastItem{ID: w.lastItem.ID, Directory: w.lastItem.Payload.Directory}
	}
	return st
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
}

func (w *Worker) setLastItem(item *queue.Item) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastItem = item
	w.handled++
}
