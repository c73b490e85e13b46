package ltp

import (
	"context"

	"ltpexport/internal/metadata"
	"ltpexport/internal/staging"
)

// Payload field keys naming which entity fields receive the ingest identifiers.
const (
	FieldTransferUUID = "transfer_uuid"
	FieldSIPUUID      = "sip_uuid"
)

// EntityRef identifies the entity a SIP is written for.
type EntityRef struct {
	Type string
	ID   string
	UUID string
}

// BackendConfig is the part of a backend's settings the pipeline needs outside
// the connector.
type BackendConfig struct {
	System        string
	TransferField string
	SIPField      string
}

// WriteBackFields returns the payload field mapping for queue items, skipping
// unset field names.
func (c BackendConfig) WriteBackFields() map[string]string {
	fields := make(map[string]string, 2)
	if c.TransferField != "" {
		fields[FieldTransferUUID] = c.TransferField
	}
	if c.SIPField != "" {
		fields[FieldSIPUUID] = c.SIPField
	}
	return fields
}

// Result carries the identifiers assigned by the backend.
type Result struct {
	TransferID string
	SIPID      string
}

// Value returns the identifier stored under a payload field key.
func (r Result) Value(key string) (string, bool) {
	switch key {
	case FieldTransferUUID:
		return r.TransferID, r.TransferID != ""
	case FieldSIPUUID:
		return r.SIPID, r.SIPID != ""
	default:
		return "", false
	}
}

// Connector serializes SIPs for one LTP backend and drives its ingest protocol.
// A connector is bound to one export unit at a time via SetDirectory and is not
// safe for concurrent use.
type Connector interface {
	Name() string
	BaseURL() string
	SetDirectory(name string)
	Directory() string
	Config() BackendConfig
	// WriteSIP writes the backend metadata file and objects into the staging
	// directory. The caller holds the directory lock.
	WriteSIP(ctx context.Context, ref EntityRef, records []metadata.Record, payload metadata.Payload) error
	// StartIngest packages the staged unit, submits it and blocks until the
	// backend reports a terminal state.
	StartIngest(ctx context.Context) (Result, error)
}

// Base implements the bookkeeping shared by every connector.
type Base struct {
	name      string
	store     *staging.Store
	directory string
	cfg       BackendConfig
}

// NewBase returns connector bookkeeping for a backend staged under baseURL.
func NewBase(name, baseURL string, cfg BackendConfig) Base {
	return Base{name: name, store: staging.NewStore(baseURL), cfg: cfg}
}

func (b *Base) Name() string { return b.name }

func (b *Base) BaseURL() string { return b.store.Root }

func (b *Base) SetDirectory(name string) { b.directory = name }

func (b *Base) Directory() string { return b.directory }

func (b *Base) Config() BackendConfig { return b.cfg }

// Store returns the staging store rooted at the base URL.
func (b *Base) Store() *staging.Store { return b.store }
