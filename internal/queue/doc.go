// Package queue persists pending ingest work items.
//
// An item names an export unit directory and the entity whose fields receive
// the identifiers the LTP backend assigns. Workers claim items, run the
// ingest and delete them; a claim is a lease, so items claimed by a worker
// that died are returned to the queue by ReclaimStale.
//
// Two backends implement Backend: Store (SQLite, the default) and RedisQueue
// for deployments where several hosts share one queue. The SQLite database is
// transient storage for in-flight work. Schema changes bump schemaVersion in
// schema.go; operators clear the database to adopt the new schema.
package queue
