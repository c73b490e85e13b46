package dirlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrInstanceRunning reports that another process holds the instance lock.
var ErrInstanceRunning = errors.New("another ltpexport instance is running")

// Instance guards long-running commands so only one process drains the queue.
type Instance struct {
	lock *flock.Flock
}

// NewInstance prepares an instance guard backed by path.
func NewInstance(path string) *Instance {
	return &Instance{lock: flock.New(path)}
}

// Path returns the lock file location.
func (i *Instance) Path() string {
	return i.lock.Path()
}

// Lock takes the instance lock without blocking.
func (i *Instance) Lock() error {
	if err := os.MkdirAll(filepath.Dir(i.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := i.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock file %s)", ErrInstanceRunning, i.lock.Path())
	}
	return nil
}

// Unlock releases the instance lock.
func (i *Instance) Unlock() error {
	return i.lock.Unlock()
}
