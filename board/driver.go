package board

import (
	"context"

	"github.com/flashbots/anonboard/protocol"
)

// Driver turns intentions into committed transitions.
//
// Submit returns exactly one outcome: the committed snapshot, a board error
// (ErrAlreadyOccupied, ErrNoActiveConfession, or a malformed-input error),
// or an opaque transport/commit error which is passed through unchanged.
// Drivers do not retry.
type Driver interface {
	Submit(ctx context.Context, intention *protocol.Intention) (*Snapshot, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
}
