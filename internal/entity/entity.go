package entity

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"ltpexport/internal/language"
)

// Entity types the content repository exposes.
const (
	TypeNode               = "node"
	TypeMedia              = "media"
	TypeTaxonomyTerm       = "taxonomy_term"
	TypeTaxonomyVocabulary = "taxonomy_vocabulary"
	TypeUser               = "user"
)

// File is the binary attached to a file-bearing entity.
type File struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// Entity is a snapshot of a content object: its identity, published state,
// base-language field values and per-language overrides.
type Entity struct {
	Type         string                       `yaml:"type"`
	ID           string                       `yaml:"id"`
	UUID         string                       `yaml:"uuid"`
	Bundle       string                       `yaml:"bundle"`
	Published    bool                         `yaml:"published"`
	Language     string                       `yaml:"language,omitempty"`
	Fields       map[string]string            `yaml:"fields,omitempty"`
	Translations map[string]map[string]string `yaml:"translations,omitempty"`
	File         *File                        `yaml:"file,omitempty"`
}

// Repository loads and persists entities.
type Repository interface {
	// Load returns an error wrapping services.ErrNotFound when the entity is gone.
	Load(ctx context.Context, entityType, uuid string) (*Entity, error)
	Save(ctx context.Context, e *Entity) error
}

// Languages returns the translation languages sorted by tag.
func (e *Entity) Languages() []string {
	if len(e.Translations) == 0 {
		return nil
	}
	return language.NormalizeList(slices.Collect(maps.Keys(e.Translations)))
}

// Translation returns the field overrides for lang. Keys are matched after
// normalization, so "pt_BR" is found for "pt-BR". A raw key that matches lang
// exactly wins over one that only normalizes to it.
func (e *Entity) Translation(lang string) map[string]string {
	if fields, ok := e.Translations[lang]; ok {
		return fields
	}
	want := language.Normalize(lang)
	for _, key := range slices.Sorted(maps.Keys(e.Translations)) {
		if language.Normalize(key) == want {
			return e.Translations[key]
		}
	}
	return nil
}

// HasFile reports whether the entity carries an attached binary.
func (e *Entity) HasFile() bool {
	return e.File != nil && strings.TrimSpace(e.File.Path) != ""
}

// SetField writes value onto the base-language field set.
func (e *Entity) SetField(name, value string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[name] = value
}

// Field returns a base-language field value.
func (e *Entity) Field(name string) string {
	return e.Fields[name]
}

// Prefix returns the short identifier prefix for an entity type.
func Prefix(entityType string) string {
	switch entityType {
	case TypeNode:
		return "nid"
	case TypeMedia:
		return "mid"
	case TypeTaxonomyTerm:
		return "tid"
	case TypeTaxonomyVocabulary:
		return "vid"
	case TypeUser:
		return "uid"
	default:
		return "id"
	}
}

// ShortUID returns "<prefix>_<id>", e.g. "nid_42".
func ShortUID(e *Entity) string {
	return fmt.Sprintf("%s_%s", Prefix(e.Type), e.ID)
}

// UID returns the export directory name "<site>_<prefix>_<id>".
func UID(site string, e *Entity) string {
	return site + "_" + ShortUID(e)
}
