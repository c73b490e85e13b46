package entity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"ltpexport/internal/language"
	"ltpexport/internal/services"
)

// FileStore keeps one YAML document per entity at <root>/<type>/<uuid>.yaml.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the store directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(entityType, id string) (string, error) {
	entityType = strings.TrimSpace(entityType)
	if entityType == "" || strings.ContainsAny(entityType, `/\.`) {
		return "", services.Wrap(services.ErrValidation, "entity", "resolve path",
			fmt.Sprintf("invalid entity type %q", entityType), nil)
	}
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "entity", "resolve path",
			fmt.Sprintf("invalid uuid %q", id), err)
	}
	return filepath.Join(s.root, entityType, parsed.String()+".yaml"), nil
}

// Load reads an entity. A missing document yields services.ErrNotFound.
func (s *FileStore) Load(ctx context.Context, entityType, id string) (*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(entityType, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "entity", "load",
				fmt.Sprintf("%s %s", entityType, id), nil)
		}
		return nil, fmt.Errorf("read entity %s: %w", path, err)
	}
	var e Entity
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, services.Wrap(services.ErrValidation, "entity", "decode", path, err)
	}
	if e.Type == "" {
		e.Type = entityType
	}
	if e.UUID == "" {
		e.UUID = id
	}
	normalize(&e)
	return &e, nil
}

// Save writes the entity atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, e *Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e == nil {
		return services.Wrap(services.ErrValidation, "entity", "save", "nil entity", nil)
	}
	path, err := s.path(e.Type, e.UUID)
	if err != nil {
		return err
	}
	normalize(e)
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create entity directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entity-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp entity file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write entity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close entity: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace entity: %w", err)
	}
	return nil
}

// List returns every stored entity of entityType sorted by UUID.
func (s *FileStore) List(ctx context.Context, entityType string) ([]*Entity, error) {
	dir := filepath.Join(s.root, entityType)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list entities: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".yaml") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yaml"))
	}
	sort.Strings(ids)

	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		e, err := s.Load(ctx, entityType, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func normalize(e *Entity) {
	e.Language = language.Normalize(e.Language)
	if len(e.Translations) == 0 {
		return
	}
	normalized := make(map[string]map[string]string, len(e.Translations))
	for lang, fields := range e.Translations {
		key := language.Normalize(lang)
		merged := normalized[key]
		if merged == nil {
			merged = make(map[string]string, len(fields))
			normalized[key] = merged
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	e.Translations = normalized
}
