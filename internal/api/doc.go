// Package api holds the transport-facing layer: wire types for queue and
// health payloads, the queue and staging workflows shared by the CLI, and the
// event webhook server that turns content repository notifications into
// exports.
//
// # Routes
//
//	POST /api/events                         {entity_type, uuid, event}
//	POST /api/entities/{type}/{uuid}/export  ?mode=delete for a tombstone
//	GET  /api/queue                          pending and claimed items
//	GET  /api/health                         queue counts and worker state
//
// When api.token is set every route requires "Authorization: Bearer <token>".
// Each request carries an X-Request-Id, generated when absent, that is attached
// to the export logs as the correlation id.
package api
