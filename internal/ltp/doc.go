// Package ltp defines the connector contract for long-term preservation
// backends and the machinery they share: HTTP calls, zip packaging, SHA-512
// sidecars, fixed-interval status polling and the ingest lifecycle.
//
// Backends live in subpackages and plug into Ingest through a Protocol and a
// SIPResolver.
package ltp
