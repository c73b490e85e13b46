package metadata

import (
	"fmt"
	"path/filepath"

	"ltpexport/internal/entity"
	"ltpexport/internal/fieldconfig"
	"ltpexport/internal/services"
	"ltpexport/internal/textutil"
)

// Extractor turns entities into metadata records using a field configuration.
type Extractor struct {
	mapping fieldconfig.Mapping
}

// NewExtractor returns an extractor bound to mapping.
func NewExtractor(mapping fieldconfig.Mapping) *Extractor {
	return &Extractor{mapping: mapping}
}

// Eligible reports whether the entity's bundle has a configured field set.
func (x *Extractor) Eligible(e *entity.Entity) bool {
	if e == nil {
		return false
	}
	_, ok := x.mapping.Fields(e.Bundle)
	return ok
}

// Extract builds one record per translation language, or a single record in
// the entity's own language when it has no translations, plus the payload
// shared by every record.
func (x *Extractor) Extract(e *entity.Entity, mode UpdateMode) ([]Record, Payload, error) {
	if e == nil {
		return nil, Payload{}, services.Wrap(services.ErrValidation, "metadata", "extract", "nil entity", nil)
	}
	fields, ok := x.mapping.Fields(e.Bundle)
	if !ok {
		return nil, Payload{}, services.Wrap(services.ErrConfiguration, "metadata", "extract",
			fmt.Sprintf("bundle %q of %s %s has no field configuration", e.Bundle, e.Type, e.UUID), nil)
	}

	payload := payloadOf(e)
	languages := e.Languages()
	if len(languages) == 0 {
		languages = []string{e.Language}
	}

	records := make([]Record, 0, len(languages))
	for _, lang := range languages {
		tokens := Tokens(e, lang)
		record := Record{
			Filename:       payload.Filename,
			ID:             e.ID,
			UUID:           e.UUID,
			EntityType:     e.Type,
			ExportLanguage: lang,
			Status:         status(e),
			Deleted:        mode == UpdateDelete,
			Fields:         make([]Field, 0, len(fields)),
		}
		for _, f := range fields {
			record.Fields = append(record.Fields, Field{Name: f.Name, Value: Render(f.Template, tokens)})
		}
		records = append(records, record)
	}
	return records, payload, nil
}

func payloadOf(e *entity.Entity) Payload {
	if !e.HasFile() {
		return Payload{}
	}
	name := e.File.Name
	if name == "" {
		name = filepath.Base(e.File.Path)
	}
	return Payload{SourcePath: e.File.Path, Filename: textutil.SanitizeFileName(name)}
}

func status(e *entity.Entity) string {
	if e.Published {
		return "1"
	}
	return "0"
}
