package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ltpexport/internal/dirlock"
	"ltpexport/internal/services"
)

const (
	MetadataDir = "metadata"
	ObjectsDir  = "objects"
)

// Layout names the fixed paths of one staged export unit.
type Layout struct {
	Root     string
	Metadata string
	Objects  string
	Lock     string
}

// Store manages export unit directories beneath a backend base path.
type Store struct {
	Root string
}

// NewStore returns a store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Layout resolves the paths for directory without touching the filesystem.
func (s *Store) Layout(directory string) (Layout, error) {
	if err := validateDirectory(directory); err != nil {
		return Layout{}, err
	}
	root := filepath.Join(s.Root, directory)
	return Layout{
		Root:     root,
		Metadata: filepath.Join(root, MetadataDir),
		Objects:  filepath.Join(root, ObjectsDir),
		Lock:     dirlock.MarkerPath(root),
	}, nil
}

// Prepare creates the metadata/ and objects/ subdirectories for directory.
func (s *Store) Prepare(directory string) (Layout, error) {
	layout, err := s.Layout(directory)
	if err != nil {
		return Layout{}, err
	}
	for _, dir := range []string{layout.Metadata, layout.Objects} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, services.Wrap(services.ErrTransport, "staging", "prepare", dir, err)
		}
	}
	return layout, nil
}

// Purge removes the whole unit directory, including any lock marker.
func (s *Store) Purge(directory string) error {
	layout, err := s.Layout(directory)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(layout.Root); err != nil {
		return services.Wrap(services.ErrTransport, "staging", "purge", layout.Root, err)
	}
	return nil
}

// ArchivePath returns the packaged zip location for directory.
func (s *Store) ArchivePath(directory string) string {
	return filepath.Join(s.Root, directory+ArchiveExt)
}

// SumsPath returns the checksum sidecar location for directory.
func (s *Store) SumsPath(directory string) string {
	return filepath.Join(s.Root, directory+SumsExt)
}

func validateDirectory(directory string) error {
	trimmed := strings.TrimSpace(directory)
	switch {
	case trimmed == "":
		return services.Wrap(services.ErrValidation, "staging", "layout", "directory name is empty", nil)
	case trimmed != directory,
		strings.ContainsAny(directory, `/\`),
		directory == ".", directory == "..":
		return services.Wrap(services.ErrValidation, "staging", "layout",
			fmt.Sprintf("invalid directory name %q", directory), nil)
	}
	return nil
}
