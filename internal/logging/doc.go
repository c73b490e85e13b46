// Package logging assembles structured slog loggers used across the export
// pipeline.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag log lines with queue item IDs, export directories,
// stages, and request correlation IDs. A no-op logger is provided for tests and
// for wiring code that must not fail.
package logging
