package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ltpexport/internal/services"
)

func TestPrepareCreatesLayout(t *testing.T) {
	store := NewStore(t.TempDir())
	layout, err := store.Prepare("demo_nid_42")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	for _, dir := range []string{layout.Metadata, layout.Objects} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
	if layout.Lock != filepath.Join(store.Root, "demo_nid_42", "lock") {
		t.Fatalf("unexpected lock path %s", layout.Lock)
	}
	if info, err := os.Stat(filepath.Join(store.Root, "demo_nid_42")); err != nil || !info.IsDir() {
		t.Fatal("expected unit to exist")
	}
}

func TestPurgeRemovesTreeAndToleratesMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	layout, err := store.Prepare("demo_nid_1")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := os.WriteFile(filepath.Join(layout.Objects, "scan.tif"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write object: %v", err)
	}
	if err := os.WriteFile(layout.Lock, nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	if err := store.Purge("demo_nid_1"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root, "demo_nid_1")); !os.IsNotExist(err) {
		t.Fatal("expected unit removed")
	}
	if err := store.Purge("demo_nid_1"); err != nil {
		t.Fatalf("second Purge: %v", err)
	}
}

func TestLayoutRejectsUnsafeNames(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, name := range []string{"", " x", "../etc", "a/b", ".."} {
		if _, err := store.Layout(name); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", name, err)
		}
	}
}

func TestArtifactPaths(t *testing.T) {
	store := NewStore("/srv/ltp")
	if got := store.ArchivePath("demo_nid_1"); got != "/srv/ltp/demo_nid_1.zip" {
		t.Fatalf("unexpected archive path %s", got)
	}
	if got := store.SumsPath("demo_nid_1"); got != "/srv/ltp/demo_nid_1.sums" {
		t.Fatalf("unexpected sums path %s", got)
	}
}
