package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ltpexport/internal/logging"
)

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldEntries(t *testing.T) {
	root := t.TempDir()
	oldTime := time.Now().Add(-2 * time.Hour)

	oldDir := mkdir(t, root, "site_nid_1")
	oldZip := touch(t, root, "site_nid_2.zip")
	for _, p := range []string{oldDir, oldZip} {
		if err := os.Chtimes(p, oldTime, oldTime); err != nil {
			t.Fatalf("set old time: %v", err)
		}
	}
	recentDir := mkdir(t, root, "site_nid_3")
	unrelated := touch(t, root, "notes.txt")
	if err := os.Chtimes(unrelated, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removals, got %v", result.Removed)
	}
	for _, p := range []string{oldDir, oldZip} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", p)
		}
	}
	for _, p := range []string{recentDir, unrelated} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should still exist", p)
		}
	}
}

func TestCleanStaleSkipsLockedDirectories(t *testing.T) {
	root := t.TempDir()
	locked := mkdir(t, root, "site_nid_9")
	touch(t, locked, "lock")
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(locked, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Skipped) != 1 {
		t.Fatalf("expected locked directory to be skipped, got %+v", result)
	}
	if _, err := os.Stat(locked); err != nil {
		t.Fatal("locked directory should still exist")
	}
}

func TestCleanOrphanedKeepsActiveUnits(t *testing.T) {
	root := t.TempDir()
	active := mkdir(t, root, "site_nid_1")
	activeZip := touch(t, root, "site_nid_1.zip")
	orphan := mkdir(t, root, "site_nid_2")
	orphanZip := touch(t, root, "site_nid_3.zip")
	orphanSums := touch(t, root, "site_nid_3.sums")

	result := CleanOrphaned(context.Background(), root, map[string]struct{}{"site_nid_1": {}}, nil)
	if len(result.Removed) != 3 {
		t.Fatalf("expected 3 removals, got %v", result.Removed)
	}
	for _, p := range []string{orphan, orphanZip, orphanSums} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", p)
		}
	}
	for _, p := range []string{active, activeZip} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should still exist", p)
		}
	}
}

func TestListDirectoriesMergesArtifacts(t *testing.T) {
	root := t.TempDir()
	unit := mkdir(t, root, "site_nid_1")
	if err := os.WriteFile(filepath.Join(unit, "data.bin"), make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	touch(t, unit, "lock")
	if err := os.WriteFile(filepath.Join(root, "site_mid_2.zip"), make([]byte, 40), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "site_mid_2.sums"), []byte("Sha512 ab"), 0o644); err != nil {
		t.Fatalf("write sums: %v", err)
	}

	entries, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].Directory != "site_mid_2" || !entries[0].Archived || entries[0].Size != 49 {
		t.Fatalf("unexpected archive entry: %+v", entries[0])
	}
	if entries[1].Directory != "site_nid_1" || !entries[1].Locked || entries[1].Size != 100 {
		t.Fatalf("unexpected unit entry: %+v", entries[1])
	}

	missing, err := ListDirectories(filepath.Join(root, "missing"))
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing root, got %v %v", missing, err)
	}
}

func mkdir(t *testing.T, root, name string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	return path
}

func touch(t *testing.T, root, name string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
