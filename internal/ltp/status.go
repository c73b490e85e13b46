package ltp

import "context"

// State is a backend status normalized to the transfer state machine.
type State int

const (
	StateProcessing State = iota
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "processing"
	}
}

// Status is one observation of a transfer.
type Status struct {
	State State
	// Label is the backend's own state string.
	Label string
	// SIPID is set when the backend reports the SIP id with the transfer.
	SIPID string
	// ExternalID is the backend workflow id used for follow-up lookups.
	ExternalID string
	Message    string
}

// Protocol is the backend-specific half of the ingest lifecycle.
type Protocol interface {
	// MetadataFile is the metadata path relative to the unit root.
	MetadataFile() string
	// IncludeRoot selects root-inclusive packaging.
	IncludeRoot() bool
	// WantsSums requests a <directory>.sums sidecar next to the archive.
	WantsSums() bool
	Submit(ctx context.Context, archive Archive) (transferID string, err error)
	TransferStatus(ctx context.Context, transferID string) (Status, error)
}

// SIPResolver derives the SIP id once a transfer has completed.
type SIPResolver interface {
	ResolveSIP(ctx context.Context, transferID string, final Status) (string, error)
}

// SIPResolverFunc adapts a function to SIPResolver.
type SIPResolverFunc func(ctx context.Context, transferID string, final Status) (string, error)

func (f SIPResolverFunc) ResolveSIP(ctx context.Context, transferID string, final Status) (string, error) {
	return f(ctx, transferID, final)
}
