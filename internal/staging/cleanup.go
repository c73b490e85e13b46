package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ltpexport/internal/dirlock"
	"ltpexport/internal/logging"
)

const (
	ArchiveExt = ".zip"
	SumsExt    = ".sums"
)

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Entry describes one export unit found under a staging root. Directory is
// the unit name; Path points at the unit directory, or at the archive when
// only the packaged artifact remains.
type Entry struct {
	Directory string    `json:"directory"`
	Path      string    `json:"path"`
	ModTime   time.Time `json:"mod_time"`
	Size      int64     `json:"size_bytes"`
	Locked    bool      `json:"locked"`
	Archived  bool      `json:"archived"`
}

// ListDirectories returns the export units under root, sorted by name.
func ListDirectories(root string) ([]Entry, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	byName := make(map[string]*Entry)
	for _, de := range entries {
		name, kind := classify(de)
		if kind == kindOther {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, de.Name())
		entry, ok := byName[name]
		if !ok {
			entry = &Entry{Directory: name, Path: path}
			byName[name] = entry
		}
		switch kind {
		case kindUnit:
			entry.Path = path
			entry.Locked = dirlock.IsHeld(path)
			size, _ := dirSize(path)
			entry.Size += size
		case kindArchive:
			entry.Archived = true
			entry.Size += info.Size()
		case kindSums:
			entry.Size += info.Size()
		}
		if info.ModTime().After(entry.ModTime) {
			entry.ModTime = info.ModTime()
		}
	}

	out := make([]Entry, 0, len(byName))
	for _, entry := range byName {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Directory < out[j].Directory })
	return out, nil
}

// CleanStale removes unit directories and archives under root that have not
// been modified for maxAge. Locked directories are left alone.
func CleanStale(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, root, logger, "stale", func(_ string, info fs.FileInfo) bool {
		return info.ModTime().Before(cutoff)
	})
}

// CleanOrphaned removes unit directories, archives and checksum sidecars whose
// directory name has no pending queue item in active. Locked directories are
// left alone.
func CleanOrphaned(ctx context.Context, root string, active map[string]struct{}, logger *slog.Logger) CleanResult {
	return sweep(ctx, root, logger, "orphaned", func(name string, _ fs.FileInfo) bool {
		_, pending := active[name]
		return !pending
	})
}

func sweep(ctx context.Context, root string, logger *slog.Logger, reason string, remove func(string, fs.FileInfo) bool) CleanResult {
	result := CleanResult{}
	logger = logging.NewComponentLogger(logger, "staging")

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	for _, de := range entries {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: ctx.Err()})
			return result
		}
		name, kind := classify(de)
		if kind == kindOther {
			continue
		}
		path := filepath.Join(root, de.Name())
		info, err := de.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !remove(name, info) {
			continue
		}
		if kind == kindUnit && dirlock.IsHeld(path) {
			result.Skipped = append(result.Skipped, path)
			logger.Debug("skipping locked staging directory", logging.String("path", path))
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logging.WarnWithContext(logger, "failed to remove staging entry", "staging_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging directory permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed staging entry",
			logging.String("path", path),
			logging.String("reason", reason),
			logging.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

type entryKind int

const (
	kindOther entryKind = iota
	kindUnit
	kindArchive
	kindSums
)

func classify(de fs.DirEntry) (string, entryKind) {
	name := de.Name()
	if strings.HasPrefix(name, ".") {
		return "", kindOther
	}
	if de.IsDir() {
		return name, kindUnit
	}
	switch {
	case strings.HasSuffix(name, ArchiveExt):
		return strings.TrimSuffix(name, ArchiveExt), kindArchive
	case strings.HasSuffix(name, SumsExt):
		return strings.TrimSuffix(name, SumsExt), kindSums
	default:
		return "", kindOther
	}
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, infoErr := d.Info(); infoErr == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size, err
}
