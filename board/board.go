package board

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/protocol"
)

var (
	// ErrAlreadyOccupied is returned by a post while a confession is on the board.
	ErrAlreadyOccupied = errors.New("board already occupied")
	// ErrNoActiveConfession is returned by a vote while the board is empty.
	ErrNoActiveConfession = errors.New("no active confession")

	// ErrStaleSlot is returned by a tagged post whose slot id is not the next ordinal.
	ErrStaleSlot = errors.New("stale slot id")
	// ErrCounterOverflow is returned when a tally or TotalPosts would wrap.
	ErrCounterOverflow = errors.New("counter overflow")
	// ErrContentTooLong is returned when content exceeds MaxContentLength.
	ErrContentTooLong = errors.New("content too long")
	// ErrInvalidContent is returned for content that is not valid UTF-8.
	// Such content would not survive the JSON encoding of stored blocks.
	ErrInvalidContent = errors.New("content is not valid utf-8")
)

// Board is the confession slot state machine.
//
// It is not safe for concurrent use: whoever commits transitions owns the
// handle and applies them one at a time (see ledger.Driver). A failed
// transition never modifies the board.
type Board struct {
	config *protocol.BoardConfig
	state  Snapshot
}

// New creates an empty board. A nil config means no content limit.
func New(config *protocol.BoardConfig) *Board {
	if config == nil {
		config = &protocol.BoardConfig{}
	}
	return &Board{config: config}
}

// FromSnapshot creates a board positioned at an existing state.
func FromSnapshot(config *protocol.BoardConfig, snap *Snapshot) *Board {
	b := New(config)
	b.state = *snap
	return b
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() *Snapshot {
	return b.state.Clone()
}

// Clone returns an independent board with the same config and state.
func (b *Board) Clone() *Board {
	return &Board{config: b.config, state: b.state}
}

// Post occupies the empty slot, deriving the author tag from cred.
//
// The tag is derived for slot id TotalPosts, which is the ordinal the
// new post takes: after the increment it is the board's CurrentSlotID.
func (b *Board) Post(cred crypto.Credential, content string, timestamp uint64) (*Snapshot, error) {
	if b.state.Occupied {
		return nil, ErrAlreadyOccupied
	}
	slotID := b.state.TotalPosts
	tag, err := crypto.DeriveAuthorTag(cred, slotID)
	if err != nil {
		return nil, err
	}
	return b.PostTagged(slotID, tag, content, timestamp)
}

// PostTagged occupies the empty slot with a tag the poster derived locally.
// slotID must be the ordinal the post will occupy, i.e. the current TotalPosts.
func (b *Board) PostTagged(slotID uint64, tag crypto.AuthorTag, content string, timestamp uint64) (*Snapshot, error) {
	if b.state.Occupied {
		return nil, ErrAlreadyOccupied
	}
	if slotID != b.state.TotalPosts {
		return nil, fmt.Errorf("%w: got %d, board is at %d", ErrStaleSlot, slotID, b.state.TotalPosts)
	}
	if b.state.TotalPosts == math.MaxUint64 {
		return nil, fmt.Errorf("%w: total posts", ErrCounterOverflow)
	}
	if !utf8.ValidString(content) {
		return nil, ErrInvalidContent
	}
	if b.config.MaxContentLength > 0 && len(content) > b.config.MaxContentLength {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrContentTooLong, len(content), b.config.MaxContentLength)
	}

	b.state.Slot = Slot{
		Occupied:  true,
		Content:   content,
		AuthorTag: tag,
		PostedAt:  timestamp,
	}
	b.state.TotalPosts++

	return b.Snapshot(), nil
}

// Vote adds one vote to the occupied slot. Repeat votes and votes by the
// author are counted like any other.
func (b *Board) Vote(direction protocol.Direction) (*Snapshot, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: %d", protocol.ErrInvalidDirection, uint8(direction))
	}
	if !b.state.Occupied {
		return nil, ErrNoActiveConfession
	}

	switch direction {
	case protocol.Up:
		if b.state.Upvotes == math.MaxUint64 {
			return nil, fmt.Errorf("%w: upvotes", ErrCounterOverflow)
		}
		b.state.Upvotes++
	case protocol.Down:
		if b.state.Downvotes == math.MaxUint64 {
			return nil, fmt.Errorf("%w: downvotes", ErrCounterOverflow)
		}
		b.state.Downvotes++
	}

	return b.Snapshot(), nil
}

// Apply dispatches an intention to the matching transition.
func (b *Board) Apply(intention *protocol.Intention) (*Snapshot, error) {
	if err := intention.Validate(); err != nil {
		return nil, err
	}

	switch intention.Kind {
	case protocol.PostIntentionKind:
		p := intention.Post
		return b.PostTagged(p.SlotID, p.AuthorTag, p.Content, p.PostedAt)
	case protocol.VoteIntentionKind:
		return b.Vote(intention.Vote.Direction)
	}
	return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownIntention, intention.Kind)
}

// IsPreconditionError reports whether err is a state conflict that a caller
// may resolve by re-reading the latest snapshot.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrAlreadyOccupied) || errors.Is(err, ErrNoActiveConfession)
}
