package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected rejects media operations outside the Connected
	// state.
	ErrNotConnected = errors.New("session: not connected")
	// ErrAlreadyConnected rejects a second Connect.
	ErrAlreadyConnected = errors.New("session: already connected")
	// ErrRedundant is the local precondition guard: pausing a paused
	// producer or resuming a running consumer fails here before any
	// network round trip.
	ErrRedundant = errors.New("session: operation is redundant")
	// ErrUnknownProducer reports an id this session never produced or
	// already closed.
	ErrUnknownProducer = errors.New("session: unknown producer")
	// ErrUnknownConsumer reports an id this session never consumed or
	// already closed.
	ErrUnknownConsumer = errors.New("session: unknown consumer")
)

// ProtocolError is a server-side rejection of a signaling request. It
// is never retried automatically.
type ProtocolError struct {
	Request string
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("session: server rejected %s: %s", e.Request, e.Reason)
}

// ConsistencyError reports local/remote state divergence after an
// acknowledged operation. Automatic recovery is unsafe, so this is kept
// distinct from ProtocolError.
type ConsistencyError struct {
	Entity string
	ID     string
	Err    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("session: %s %s diverged from server state: %v", e.Entity, e.ID, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
