package metadata

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// UpdateMode distinguishes a normal export from a deletion tombstone.
type UpdateMode int

const (
	UpdateCreate UpdateMode = 10
	UpdateDelete UpdateMode = 11
)

func (m UpdateMode) String() string {
	switch m {
	case UpdateDelete:
		return "delete"
	case UpdateCreate:
		return "create"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Base record keys, in serialization order.
const (
	KeyFilename       = "filename"
	KeyID             = "id"
	KeyUUID           = "uuid"
	KeyEntityType     = "entity_type"
	KeyExportLanguage = "export_language"
	KeyStatus         = "status"
	KeyDeleted        = "deleted"
)

// Field is one rendered output value.
type Field struct {
	Name  string
	Value string
}

// Record is the metadata of one language variant of an entity.
type Record struct {
	Filename       string
	ID             string
	UUID           string
	EntityType     string
	ExportLanguage string
	// Status is "1" when published, "0" otherwise.
	Status  string
	Deleted bool
	// Fields holds configured output fields in declaration order.
	Fields []Field
}

// Payload references the binary attached to the entity. Both values are empty
// when the entity carries no file.
type Payload struct {
	SourcePath string
	Filename   string
}

// Empty reports whether there is no payload to copy.
func (p Payload) Empty() bool {
	return p.SourcePath == ""
}

// Values returns the flat ordered key/value list of the record. A configured
// field named like a base key overrides the base value in place.
func (r Record) Values() []Field {
	values := []Field{
		{KeyFilename, r.Filename},
		{KeyID, r.ID},
		{KeyUUID, r.UUID},
		{KeyEntityType, r.EntityType},
		{KeyExportLanguage, r.ExportLanguage},
		{KeyStatus, r.Status},
		{KeyDeleted, strconv.FormatBool(r.Deleted)},
	}
	index := make(map[string]int, len(values)+len(r.Fields))
	for i, f := range values {
		index[f.Name] = i
	}
	for _, f := range r.Fields {
		if i, ok := index[f.Name]; ok {
			values[i].Value = f.Value
			continue
		}
		index[f.Name] = len(values)
		values = append(values, f)
	}
	return values
}

// WithFilename returns a copy of r whose filename is replaced.
func (r Record) WithFilename(name string) Record {
	r.Filename = name
	return r
}

// MarshalJSON encodes the record as an object with keys in Values order.
// HTML characters and slashes are written unescaped.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Values() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, f.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
