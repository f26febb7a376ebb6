package board

import (
	"github.com/flashbots/anonboard/crypto"
)

// DerivedView is one participant's projection of a snapshot.
type DerivedView struct {
	Occupied      bool             `json:"occupied"`
	Content       string           `json:"content"`
	AuthorTag     crypto.AuthorTag `json:"author_tag"`
	Upvotes       uint64           `json:"upvotes"`
	Downvotes     uint64           `json:"downvotes"`
	PostedAt      uint64           `json:"posted_at"`
	TotalPosts    uint64           `json:"total_posts"`
	CurrentSlotID *uint64          `json:"current_slot_id"`
	IsAuthor      bool             `json:"is_author"`
}

// Reconcile combines a public snapshot with a local credential.
//
// It keeps no state between calls and must be rerun for every new snapshot:
// the author tag is slot specific, so a view computed against an older
// snapshot can report authorship wrongly. A malformed credential is never
// the author.
func Reconcile(snap *Snapshot, cred crypto.Credential) DerivedView {
	view := DerivedView{
		Occupied:   snap.Occupied,
		Content:    snap.Content,
		AuthorTag:  snap.AuthorTag,
		Upvotes:    snap.Upvotes,
		Downvotes:  snap.Downvotes,
		PostedAt:   snap.PostedAt,
		TotalPosts: snap.TotalPosts,
	}

	slotID, ok := snap.CurrentSlotID()
	if !ok {
		return view
	}
	view.CurrentSlotID = &slotID

	if !snap.Occupied {
		return view
	}

	tag, err := crypto.DeriveAuthorTag(cred, slotID)
	if err != nil {
		return view
	}
	view.IsAuthor = tag.Equal(snap.AuthorTag)

	return view
}
