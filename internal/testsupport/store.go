package testsupport

import (
	"context"
	"testing"

	"ltpexport/internal/config"
	"ltpexport/internal/entity"
	"ltpexport/internal/queue"
)

// MustOpenStore opens the SQLite queue for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.OpenStore(cfg.QueuePath())
	if err != nil {
		t.Fatalf("queue.OpenStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue adds a payload for tests.
func MustEnqueue(t testing.TB, q queue.ExportQueue, directory string) *queue.Item {
	t.Helper()

	item, err := q.Enqueue(context.Background(), queue.Payload{
		Directory:  directory,
		EntityType: entity.TypeNode,
		UUID:       "00000000-0000-0000-0000-000000000000",
		Fields:     map[string]string{},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return item
}

// WriteEntity saves e into the YAML entity store.
func WriteEntity(t testing.TB, store *entity.FileStore, e *entity.Entity) {
	t.Helper()

	if err := store.Save(context.Background(), e); err != nil {
		t.Fatalf("save entity %s/%s: %v", e.Type, e.UUID, err)
	}
}
