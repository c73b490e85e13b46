// Package metadata harvests flat metadata records from entities.
//
// An entity yields one Record per language variant. Each record carries the
// fixed base keys (filename, id, uuid, entity_type, export_language, status,
// deleted) followed by the configured fields rendered from token templates
// such as "[node:title]".
package metadata
