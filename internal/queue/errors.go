package queue

import "errors"

// ErrLeaseLost is returned by Delete, Release and Heartbeat when the item is
// no longer claimed under the caller's lease.
var ErrLeaseLost = errors.New("queue lease lost")
