// Package services defines shared utilities consumed by the exporter, the
// queue worker, and the LTP connectors.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, export directories, stage
//     names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. The markers form the
//     failure taxonomy (lock timeout, configuration, transport, terminal
//     backend failure, entity not found) and Kind maps an error back to its
//     bucket for the error_kind log field.
//
// Use these helpers when wiring new pipeline code so failure reporting stays
// uniform between the interactive export path and the asynchronous ingest path.
package services
