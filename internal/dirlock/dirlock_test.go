package dirlock_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ltpexport/internal/dirlock"
	"ltpexport/internal/services"
)

func TestAcquireCreatesDirectoryAndMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "demo_nid_42")
	locker := dirlock.New(10*time.Millisecond, 100*time.Millisecond, dirlock.ModeMarker)

	if err := locker.Acquire(context.Background(), dir); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !locker.IsHeld(dir) {
		t.Fatal("expected marker after acquire")
	}
	if err := locker.Release(dir); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if locker.IsHeld(dir) {
		t.Fatal("expected marker removed after release")
	}
}

func TestReleaseWithoutMarkerIsNoop(t *testing.T) {
	locker := dirlock.New(0, 0, "")
	dir := t.TempDir()
	if err := locker.Release(dir); err != nil {
		t.Fatalf("Release on unlocked dir returned %v", err)
	}
	if err := locker.Release(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("Release on missing dir returned %v", err)
	}
}

func TestAcquireTimesOutWithinBudget(t *testing.T) {
	for _, mode := range []dirlock.Mode{dirlock.ModeMarker, dirlock.ModeExclusive} {
		t.Run(string(mode), func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(dirlock.MarkerPath(dir), nil, 0o644); err != nil {
				t.Fatalf("write marker: %v", err)
			}

			interval := 20 * time.Millisecond
			timeout := 100 * time.Millisecond
			locker := dirlock.New(interval, timeout, mode)

			start := time.Now()
			err := locker.Acquire(context.Background(), dir)
			elapsed := time.Since(start)
			if !errors.Is(err, services.ErrLockTimeout) {
				t.Fatalf("expected lock timeout, got %v", err)
			}
			if elapsed > timeout+interval+50*time.Millisecond {
				t.Fatalf("acquire blocked %s, budget %s", elapsed, timeout+interval)
			}
			if locker.Acquire(context.Background(), dir) == nil {
				t.Fatal("Acquire should fail while marker is present")
			}

			if err := locker.Release(dir); err != nil {
				t.Fatalf("Release failed: %v", err)
			}
			if locker.Acquire(context.Background(), dir) != nil {
				t.Fatal("Acquire should succeed once marker is gone")
			}
		})
	}
}

func TestTimeoutLeavesNoMarkerBehind(t *testing.T) {
	dir := t.TempDir()
	locker := dirlock.New(5*time.Millisecond, 20*time.Millisecond, dirlock.ModeMarker)
	holder := dirlock.New(5*time.Millisecond, 20*time.Millisecond, dirlock.ModeMarker)
	if err := holder.Acquire(context.Background(), dir); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	if err := locker.Acquire(context.Background(), dir); err == nil {
		t.Fatal("expected timeout")
	}
	if err := holder.Release(dir); err != nil {
		t.Fatalf("release: %v", err)
	}
	if locker.IsHeld(dir) {
		t.Fatal("timed out acquire must not create a marker")
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	locker := dirlock.New(10*time.Millisecond, time.Second, dirlock.ModeMarker)
	if err := locker.Acquire(context.Background(), dir); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = locker.Release(dir)
	}()

	if err := locker.Acquire(context.Background(), dir); err != nil {
		t.Fatalf("second acquire should succeed after release: %v", err)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dirlock.MarkerPath(dir), nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	locker := dirlock.New(10*time.Millisecond, time.Second, dirlock.ModeMarker)
	if err := locker.Acquire(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExclusiveModeAdmitsOneWinner(t *testing.T) {
	dir := t.TempDir()
	locker := dirlock.New(time.Millisecond, 5*time.Millisecond, dirlock.ModeExclusive)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if locker.Acquire(context.Background(), dir) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestWithTimeoutCopies(t *testing.T) {
	base := dirlock.New(time.Second, 20*time.Second, dirlock.ModeMarker)
	worker := base.WithTimeout(2 * time.Minute)
	if worker.Timeout != 2*time.Minute || base.Timeout != 20*time.Second {
		t.Fatalf("unexpected timeouts: base=%s worker=%s", base.Timeout, worker.Timeout)
	}
}

func TestInstanceSingleHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "ltpexport.lock")
	first := dirlock.NewInstance(path)
	if err := first.Lock(); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer first.Unlock()

	second := dirlock.NewInstance(path)
	if err := second.Lock(); !errors.Is(err, dirlock.ErrInstanceRunning) {
		t.Fatalf("expected ErrInstanceRunning, got %v", err)
	}
}
