// Package exporter turns entity mutations into staged SIPs and queue items.
//
// UpdateEntity owns the write sequence for one export unit: lock the unit
// directory, drop any pending queue item for it, purge stale output, lock
// again, extract metadata, let the connector write the SIP, unlock, and
// enqueue the ingest. Both lock acquisitions must succeed or nothing is
// enqueued. ExportAll runs UpdateEntity over every stored entity of a type
// with bounded concurrency.
package exporter
