package board

import (
	"github.com/flashbots/anonboard/crypto"
)

// Slot is the single confession position of the board.
// Content, AuthorTag and PostedAt are only meaningful while Occupied.
type Slot struct {
	Occupied  bool             `json:"occupied"`
	Content   string           `json:"content"`
	AuthorTag crypto.AuthorTag `json:"author_tag"`
	Upvotes   uint64           `json:"upvotes"`
	Downvotes uint64           `json:"downvotes"`
	PostedAt  uint64           `json:"posted_at"`
}

// Counters hold the board's monotonic state.
type Counters struct {
	// TotalPosts is incremented once per accepted post and never reset.
	TotalPosts uint64 `json:"total_posts"`
}

// CurrentSlotID returns the ordinal of the latest post, or false before the first post.
func (c Counters) CurrentSlotID() (uint64, bool) {
	if c.TotalPosts == 0 {
		return 0, false
	}
	return c.TotalPosts - 1, true
}

// Snapshot is the complete public state of the board at one point in time.
// Its JSON form is flat: the slot and counter fields share one object.
type Snapshot struct {
	Slot
	Counters
}

// Clone returns an independent copy.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	return &c
}

// Equal reports whether two snapshots describe the same board state.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return *s == *other
}
