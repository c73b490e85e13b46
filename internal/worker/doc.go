// Package worker drains the export queue.
//
// Each claimed item is ingested into the configured LTP backend under the
// unit's directory lock. The identifiers the backend assigns are written back
// to the entity fields named in the item payload. An item is deleted once it
// has been processed, whatever the outcome; failures are only logged. Run
// polls the queue, reclaims stale leases, and keeps the lease of the item in
// progress alive with heartbeats.
package worker
