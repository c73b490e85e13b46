// Package archivematica implements the Archivematica connector.
//
// SIPs carry metadata/metadata.json, a JSON array with one object per
// language record. Transfers are submitted as zip packages through
// /api/v2beta/package and tracked through /api/transfer/status and, when the
// ingest_status strategy is selected, /api/ingest/status.
package archivematica
