// Package fieldconfig parses the field configuration mini-language that maps
// content types to exported metadata fields.
//
// Each non-blank line has the form
//
//	contentType::outputFieldName::tokenTemplate
//
// Lines starting with '#' are comments. The template keeps any further "::"
// sequences verbatim. Output field names become XML element names in METS
// metadata, so they must be valid unprefixed XML names.
package fieldconfig

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"ltpexport/internal/services"
)

const separator = "::"

// Field is one configured output field and its token template.
type Field struct {
	Name     string
	Template string
}

// Mapping maps a content type (bundle) to its configured fields in declaration order.
type Mapping map[string][]Field

// Parse reads newline-separated field declarations. A line without two "::"
// separators, with an empty content type, or with a field name that is not a
// valid XML name is a configuration error.
func Parse(text string) (Mapping, error) {
	mapping := Mapping{}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, separator, 3)
		if len(parts) != 3 {
			return nil, services.Wrap(services.ErrConfiguration, "fieldconfig", "parse",
				fmt.Sprintf("line %d: expected contentType::outputFieldName::template, got %q", i+1, line), nil)
		}
		contentType := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		if contentType == "" || name == "" {
			return nil, services.Wrap(services.ErrConfiguration, "fieldconfig", "parse",
				fmt.Sprintf("line %d: content type and field name must not be empty", i+1), nil)
		}
		if !ValidName(name) {
			return nil, services.Wrap(services.ErrConfiguration, "fieldconfig", "parse",
				fmt.Sprintf("line %d: field name %q is not a valid XML element name", i+1, name), nil)
		}
		mapping.set(contentType, Field{Name: name, Template: strings.TrimSpace(parts[2])})
	}
	return mapping, nil
}

// ValidName reports whether name can be used as an unprefixed XML element
// name: a letter or underscore followed by letters, digits, '.', '-' or '_'.
// Names starting with "xml" in any case are reserved.
func ValidName(name string) bool {
	if name == "" || strings.HasPrefix(strings.ToLower(name), "xml") {
		return false
	}
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case i > 0 && (unicode.IsDigit(r) || r == '.' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// A repeated field name replaces the earlier template but keeps its position.
func (m Mapping) set(contentType string, field Field) {
	fields := m[contentType]
	for i := range fields {
		if fields[i].Name == field.Name {
			fields[i].Template = field.Template
			return
		}
	}
	m[contentType] = append(fields, field)
}

// Fields returns the configured fields for a content type and whether the type is eligible for export.
func (m Mapping) Fields(contentType string) ([]Field, bool) {
	fields, ok := m[contentType]
	return fields, ok
}

// ContentTypes lists configured content types in sorted order.
func (m Mapping) ContentTypes() []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
