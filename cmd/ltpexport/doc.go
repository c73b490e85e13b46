// Package main hosts the ltpexport CLI entrypoint and command graph.
//
// The Cobra command tree exposes the exporter (export, export all), the ingest
// worker (worker run, worker process), queue and staging maintenance,
// configuration scaffolding, preflight checks and the serve command that runs
// the event webhook and the worker loop in one process.
//
// Keep this package lean: behavior lives in the internal packages and the
// commands here only resolve configuration, open stores and render results.
package main
