package protocol

import (
	"errors"
	"fmt"

	"github.com/flashbots/anonboard/crypto"
	"github.com/google/uuid"
)

var (
	ErrUnknownIntention = errors.New("unknown intention")
	ErrInvalidDirection = errors.New("invalid vote direction")
)

// Direction is the sign of a vote.
type Direction uint8

const (
	Up Direction = iota + 1
	Down
)

// Valid returns true if the direction is Up or Down.
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// String returns "up", "down", or a numeric form for invalid values.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ParseDirection accepts "up" and "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// MarshalText encodes the direction as "up" or "down".
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts the forms produced by MarshalText.
func (d *Direction) UnmarshalText(data []byte) error {
	parsed, err := ParseDirection(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IntentionKind names the transition an intention asks for.
type IntentionKind string

const (
	PostIntentionKind IntentionKind = "post"
	VoteIntentionKind IntentionKind = "vote"
)

// PostIntention asks to occupy the empty slot.
//
// The author tag is derived by the poster for SlotID before submission, so
// the credential itself is never part of an intention.
type PostIntention struct {
	Content   string           `json:"content" cbor:"1,keyasint"`
	PostedAt  uint64           `json:"posted_at" cbor:"2,keyasint"`
	SlotID    uint64           `json:"slot_id" cbor:"3,keyasint"`
	AuthorTag crypto.AuthorTag `json:"author_tag" cbor:"4,keyasint"`
}

// VoteIntention asks to add one vote to the occupied slot.
type VoteIntention struct {
	Direction Direction `json:"direction" cbor:"1,keyasint"`
}

// Intention is a single requested board transition as handed to a driver.
type Intention struct {
	ID   string         `json:"id" cbor:"1,keyasint"`
	Kind IntentionKind  `json:"kind" cbor:"2,keyasint"`
	Post *PostIntention `json:"post,omitempty" cbor:"3,keyasint,omitempty"`
	Vote *VoteIntention `json:"vote,omitempty" cbor:"4,keyasint,omitempty"`
}

// NewPostIntention builds a post intention with a fresh id.
func NewPostIntention(content string, postedAt, slotID uint64, tag crypto.AuthorTag) *Intention {
	return &Intention{
		ID:   uuid.NewString(),
		Kind: PostIntentionKind,
		Post: &PostIntention{
			Content:   content,
			PostedAt:  postedAt,
			SlotID:    slotID,
			AuthorTag: tag,
		},
	}
}

// NewVoteIntention builds a vote intention with a fresh id.
func NewVoteIntention(direction Direction) *Intention {
	return &Intention{
		ID:   uuid.NewString(),
		Kind: VoteIntentionKind,
		Vote: &VoteIntention{Direction: direction},
	}
}

// Validate checks that the payload matches the kind.
func (i *Intention) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil", ErrUnknownIntention)
	}
	switch i.Kind {
	case PostIntentionKind:
		if i.Post == nil || i.Vote != nil {
			return fmt.Errorf("%w: post intention without post payload", ErrUnknownIntention)
		}
		if i.Post.AuthorTag.IsZero() {
			return fmt.Errorf("%w: empty author tag", crypto.ErrInvalidAuthorTag)
		}
	case VoteIntentionKind:
		if i.Vote == nil || i.Post != nil {
			return fmt.Errorf("%w: vote intention without vote payload", ErrUnknownIntention)
		}
		if !i.Vote.Direction.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(i.Vote.Direction))
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntention, i.Kind)
	}
	return nil
}
