package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/protocol"
	"github.com/flashbots/anonboard/secretstore"
)

// SnapshotSource streams committed snapshots, current snapshot first.
// Implemented by feed.Hub and services.HTTPDriver.
type SnapshotSource interface {
	Watch(ctx context.Context) (<-chan *board.Snapshot, error)
}

// ParticipantConfig configures a Participant.
type ParticipantConfig struct {
	Secrets secretstore.Store
	Driver  board.Driver

	// Snapshots is used by Watch. Defaults to Driver when it is a
	// SnapshotSource.
	Snapshots SnapshotSource

	Log *slog.Logger
	Now func() time.Time
}

// Participant posts, votes and views the board on behalf of one credential
// holder. Author tags are derived locally, so the credential is never handed
// to the driver.
type Participant struct {
	secrets   secretstore.Store
	driver    board.Driver
	snapshots SnapshotSource
	log       *slog.Logger
	now       func() time.Time
}

// NewParticipant validates config and fills in defaults.
func NewParticipant(config *ParticipantConfig) (*Participant, error) {
	if config.Secrets == nil {
		return nil, errors.New("secret store cannot be nil")
	}
	if config.Driver == nil {
		return nil, errors.New("driver cannot be nil")
	}

	p := &Participant{
		secrets:   config.Secrets,
		driver:    config.Driver,
		snapshots: config.Snapshots,
		log:       config.Log,
		now:       config.Now,
	}
	if p.snapshots == nil {
		if source, ok := config.Driver.(SnapshotSource); ok {
			p.snapshots = source
		}
	}
	if p.log == nil {
		p.log = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// PostConfession posts content into the empty slot.
//
// The tag is derived for the slot id the post will occupy, which is the
// TotalPosts of the latest snapshot. If another post lands first the driver
// reports board.ErrAlreadyOccupied.
func (p *Participant) PostConfession(ctx context.Context, content string) (board.DerivedView, error) {
	cred, err := p.secrets.GetOrCreateCredential()
	if err != nil {
		return board.DerivedView{}, fmt.Errorf("loading credential: %w", err)
	}

	snap, err := p.driver.Snapshot(ctx)
	if err != nil {
		return board.DerivedView{}, err
	}
	if snap.Occupied {
		return board.Reconcile(snap, cred), board.ErrAlreadyOccupied
	}

	slotID := snap.TotalPosts
	tag, err := crypto.DeriveAuthorTag(cred, slotID)
	if err != nil {
		return board.DerivedView{}, err
	}

	postedAt := uint64(p.now().UnixMilli())
	committed, err := p.driver.Submit(ctx, protocol.NewPostIntention(content, postedAt, slotID, tag))
	if err != nil {
		p.log.Debug("Post rejected", "slot_id", slotID, "err", err)
		return board.DerivedView{}, err
	}

	return board.Reconcile(committed, cred), nil
}

// Vote adds one vote in direction to the current confession.
func (p *Participant) Vote(ctx context.Context, direction protocol.Direction) (board.DerivedView, error) {
	cred, err := p.secrets.GetOrCreateCredential()
	if err != nil {
		return board.DerivedView{}, fmt.Errorf("loading credential: %w", err)
	}

	committed, err := p.driver.Submit(ctx, protocol.NewVoteIntention(direction))
	if err != nil {
		return board.DerivedView{}, err
	}
	return board.Reconcile(committed, cred), nil
}

// View reconciles the latest snapshot with the local credential.
func (p *Participant) View(ctx context.Context) (board.DerivedView, error) {
	cred, err := p.secrets.GetOrCreateCredential()
	if err != nil {
		return board.DerivedView{}, fmt.Errorf("loading credential: %w", err)
	}

	snap, err := p.driver.Snapshot(ctx)
	if err != nil {
		return board.DerivedView{}, err
	}
	return board.Reconcile(snap, cred), nil
}

// Watch reconciles every snapshot the source delivers. The channel closes
// when ctx is done or the source ends.
func (p *Participant) Watch(ctx context.Context) (<-chan board.DerivedView, error) {
	if p.snapshots == nil {
		return nil, errors.New("no snapshot source configured")
	}

	cred, err := p.secrets.GetOrCreateCredential()
	if err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}

	snapshots, err := p.snapshots.Watch(ctx)
	if err != nil {
		return nil, err
	}

	views := make(chan board.DerivedView, 8)
	go func() {
		defer close(views)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				select {
				case views <- board.Reconcile(snap, cred):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return views, nil
}
