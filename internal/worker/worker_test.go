package worker_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ltpexport/internal/dirlock"
	"ltpexport/internal/entity"
	"ltpexport/internal/ltp"
	"ltpexport/internal/queue"
	"ltpexport/internal/services"
	"ltpexport/internal/testsupport"
	"ltpexport/internal/worker"
)

const articleUUID = "6f1c1c2e-4a8b-4c57-9d0e-0b8f5d2a7c11"

type fixture struct {
	worker   *worker.Worker
	queue    *queue.Store
	entities *entity.FileStore
	backend  *testsupport.FakeBackend
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	entities := entity.NewFileStore(cfg.Paths.EntityDir)
	backend := testsupport.NewFakeBackend(cfg.BaseURL())
	w := worker.New(cfg, store, entities, backend.Factory(), nil)
	return fixture{worker: w, queue: store, entities: entities, backend: backend}
}

func (f fixture) saveArticle(t *testing.T) {
	t.Helper()
	testsupport.WriteEntity(t, f.entities, &entity.Entity{
		Type:      entity.TypeNode,
		ID:        "42",
		UUID:      articleUUID,
		Bundle:    "node_article",
		Published: true,
		Fields:    map[string]string{"title": "Hello"},
	})
}

func (f fixture) enqueue(t *testing.T, fields map[string]string) *queue.Item {
	t.Helper()
	item, err := f.queue.Enqueue(context.Background(), queue.Payload{
		Directory:  "demo_nid_42",
		EntityType: entity.TypeNode,
		UUID:       articleUUID,
		Fields:     fields,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return item
}

func (f fixture) requireEmptyQueue(t *testing.T) {
	t.Helper()
	items, err := f.queue.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected queue to be empty, got %d items", len(items))
	}
}

func TestRunOnceWritesBackRequestedFields(t *testing.T) {
	f := newFixture(t)
	f.saveArticle(t)
	f.backend.SetIngest(ltp.Result{TransferID: "transfer-1", SIPID: "sip-1"}, nil)
	f.enqueue(t, map[string]string{ltp.FieldTransferUUID: "field_transfer_uuid"})

	processed, err := f.worker.RunOnce(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed item, got %d", processed)
	}

	e, err := f.entities.Load(context.Background(), entity.TypeNode, articleUUID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := e.Field("field_transfer_uuid"); got != "transfer-1" {
		t.Fatalf("transfer field = %q, want transfer-1", got)
	}
	if _, ok := e.Fields["field_sip_uuid"]; ok {
		t.Fatal("sip field written although the payload did not request it")
	}
	if e.Field("title") != "Hello" {
		t.Fatalf("unrelated field changed: %q", e.Field("title"))
	}
	f.requireEmptyQueue(t)
	if dirlock.IsHeld(filepath.Join(f.backend.BaseURL, "demo_nid_42")) {
		t.Fatal("lock marker left behind")
	}
	if st := f.worker.Status(); st.Processed != 1 || st.LastError != "" || st.LastItem == nil || st.LastItem.Directory != "demo_nid_42" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestRunOnceFailedIngestConsumesItem(t *testing.T) {
	f := newFixture(t)
	f.saveArticle(t)
	f.backend.SetIngest(ltp.Result{TransferID: "transfer-1"},
		services.Wrap(services.ErrTerminalBackend, "archivematica", "ingest", "transfer-1 reported FAILED", nil))
	f.enqueue(t, map[string]string{
		ltp.FieldTransferUUID: "field_transfer_uuid",
		ltp.FieldSIPUUID:      "field_sip_uuid",
	})

	processed, err := f.worker.RunOnce(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed item, got %d", processed)
	}

	e, err := f.entities.Load(context.Background(), entity.TypeNode, articleUUID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := e.Fields["field_transfer_uuid"]; ok {
		t.Fatal("identifiers written after a failed ingest")
	}
	f.requireEmptyQueue(t)
	if f.worker.Status().LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
}

func TestRunOnceDropsItemForMissingEntity(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, map[string]string{ltp.FieldTransferUUID: "field_transfer_uuid"})

	if _, err := f.worker.RunOnce(context.Background(), 0); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(f.backend.Ingests()) != 0 {
		t.Fatal("ingest started for a missing entity")
	}
	f.requireEmptyQueue(t)
}

func TestRunOnceHonorsLimit(t *testing.T) {
	f := newFixture(t)
	f.saveArticle(t)
	f.enqueue(t, nil)
	f.enqueue(t, nil)

	processed, err := f.worker.RunOnce(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed item, got %d", processed)
	}
	stats, err := f.queue.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 {
		t.Fatalf("expected 1 pending item, got %+v", stats)
	}
}

func TestRunOnceCancelledLeavesItemQueued(t *testing.T) {
	f := newFixture(t)
	f.saveArticle(t)
	f.enqueue(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.worker.RunOnce(ctx, 0); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if len(f.backend.Ingests()) != 0 {
		t.Fatal("ingest started after cancellation")
	}
	stats, err := f.queue.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 || stats.Claimed != 0 {
		t.Fatalf("expected item back in the queue, got %+v", stats)
	}
}

func TestProcessItemLockTimeout(t *testing.T) {
	f := newFixture(t)
	f.saveArticle(t)
	dir := filepath.Join(f.backend.BaseURL, "demo_nid_42")
	if err := dirlock.New(0, 0, dirlock.ModeMarker).Acquire(context.Background(), dir); err != nil {
		t.Fatalf("pre-lock: %v", err)
	}

	item := &queue.Item{ID: 7, Payload: queue.Payload{
		Directory:  "demo_nid_42",
		EntityType: entity.TypeNode,
		UUID:       articleUUID,
	}}
	err := f.worker.ProcessItem(context.Background(), item)
	if !errors.Is(err, services.ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}
	if len(f.backend.Ingests()) != 0 {
		t.Fatal("ingest started without the lock")
	}
	if !dirlock.IsHeld(dir) {
		t.Fatal("foreign lock marker was removed")
	}
}

func TestProcessItemRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	err := f.worker.ProcessItem(context.Background(), &queue.Item{ID: 1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	if err := f.worker.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.worker.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if !f.worker.Status().Running {
		t.Fatal("expected worker to report running")
	}
	f.worker.Stop()
	if f.worker.Status().Running {
		t.Fatal("expected worker to report stopped")
	}
	f.worker.Stop()
}
