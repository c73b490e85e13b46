package dirlock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"ltpexport/internal/config"
	"ltpexport/internal/services"
)

// MarkerName is the lock marker file created inside a staging directory.
const MarkerName = "lock"

// Mode selects how the marker is created.
type Mode string

const (
	// ModeMarker checks for the marker and then creates it in a separate step.
	// Two callers racing between the check and the create may both proceed.
	ModeMarker Mode = "marker"
	// ModeExclusive creates the marker with O_EXCL so only one caller wins.
	ModeExclusive Mode = "exclusive"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 20 * time.Second
)

// Locker is an advisory lock over staging directories.
type Locker struct {
	PollInterval time.Duration
	Timeout      time.Duration
	Mode         Mode
}

// New returns a Locker with the given timings; zero values fall back to defaults.
func New(pollInterval, timeout time.Duration, mode Mode) *Locker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if mode == "" {
		mode = ModeMarker
	}
	return &Locker{PollInterval: pollInterval, Timeout: timeout, Mode: mode}
}

// FromConfig builds the export-side locker from the [lock] section. The
// worker side applies WorkerTimeout with WithTimeout.
func FromConfig(cfg config.Lock) *Locker {
	return New(
		time.Duration(cfg.PollInterval)*time.Second,
		time.Duration(cfg.Timeout)*time.Second,
		Mode(cfg.Mode),
	)
}

// WithTimeout returns a copy of the locker using a different timeout.
func (l *Locker) WithTimeout(timeout time.Duration) *Locker {
	clone := *l
	if timeout > 0 {
		clone.Timeout = timeout
	}
	return &clone
}

// MarkerPath returns the marker location for dir.
func MarkerPath(dir string) string {
	return filepath.Join(dir, MarkerName)
}

// Acquire creates dir if needed and waits until its marker is absent, then
// creates the marker. It returns an error wrapping services.ErrLockTimeout when
// the marker is still present after Timeout; no marker is created in that case.
func (l *Locker) Acquire(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransport, "lock", "create directory", dir, err)
	}

	deadline := time.Now().Add(l.timeout())
	for {
		acquired, err := l.attempt(dir)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if !time.Now().Before(deadline) {
			return services.Wrap(services.ErrLockTimeout, "lock", "acquire",
				fmt.Sprintf("%s still locked after %s", dir, l.timeout()), nil)
		}

		wait := min(l.pollInterval(), time.Until(deadline))
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Release removes the marker. A missing marker is not an error.
func (l *Locker) Release(dir string) error {
	err := os.Remove(MarkerPath(dir))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return services.Wrap(services.ErrTransport, "lock", "release", dir, err)
}

// IsHeld reports whether dir currently carries a marker.
func (l *Locker) IsHeld(dir string) bool {
	return IsHeld(dir)
}

// IsHeld reports whether dir currently carries a marker.
func IsHeld(dir string) bool {
	_, err := os.Stat(MarkerPath(dir))
	return err == nil
}

// afterMarkerCheck runs between the marker check and its creation in marker
// mode. Tests replace it to line up competing callers.
var afterMarkerCheck = func(string) {}

func (l *Locker) attempt(dir string) (bool, error) {
	marker := MarkerPath(dir)
	if l.Mode == ModeExclusive {
		file, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return false, nil
			}
			return false, services.Wrap(services.ErrTransport, "lock", "create marker", marker, err)
		}
		return true, file.Close()
	}

	if IsHeld(dir) {
		return false, nil
	}
	afterMarkerCheck(dir)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return false, services.Wrap(services.ErrTransport, "lock", "create marker", marker, err)
	}
	return true, nil
}

func (l *Locker) pollInterval() time.Duration {
	if l.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return l.PollInterval
}

func (l *Locker) timeout() time.Duration {
	if l.Timeout <= 0 {
		return DefaultTimeout
	}
	return l.Timeout
}
