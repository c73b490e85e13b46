package ltp

import (
	"fmt"
	"os"
	"path/filepath"

	"ltpexport/internal/fileutil"
	"ltpexport/internal/metadata"
	"ltpexport/internal/staging"
)

// ObjectPath returns the SIP-relative path of an object file.
func ObjectPath(name string) string {
	return staging.ObjectsDir + "/" + name
}

// CopyPayload copies the entity's attached file into the unit's objects/
// directory. An empty payload is a no-op.
func CopyPayload(layout staging.Layout, payload metadata.Payload) error {
	if payload.Empty() {
		return nil
	}
	dst := filepath.Join(layout.Objects, payload.Filename)
	if _, err := fileutil.CopyFileVerified(payload.SourcePath, dst); err != nil {
		return fmt.Errorf("copy payload %s: %w", payload.SourcePath, err)
	}
	return nil
}

// ObjectRecords prefixes record filenames with objects/. A record without a
// filename is pointed at an objects/<language>.txt placeholder, and the
// placeholder paths are returned for WritePlaceholders.
func ObjectRecords(records []metadata.Record) (out []metadata.Record, placeholders []string) {
	out = make([]metadata.Record, 0, len(records))
	for _, r := range records {
		if r.Filename == "" {
			rel := ObjectPath(r.ExportLanguage + ".txt")
			placeholders = append(placeholders, rel)
			out = append(out, r.WithFilename(rel))
			continue
		}
		out = append(out, r.WithFilename(ObjectPath(r.Filename)))
	}
	return out, placeholders
}

// WritePlaceholders writes an empty file at each SIP-relative path.
func WritePlaceholders(layout staging.Layout, rels []string) error {
	for _, rel := range rels {
		path := filepath.Join(layout.Root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("write placeholder %s: %w", rel, err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("write placeholder %s: %w", rel, err)
		}
	}
	return nil
}
