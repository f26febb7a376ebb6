package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/protocol"
)

// Publisher receives every committed snapshot, in commit order.
type Publisher interface {
	Publish(ctx context.Context, snap *board.Snapshot) error
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	Board *protocol.BoardConfig
	Store Store

	// Publisher is optional.
	Publisher Publisher

	Log *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Driver commits intentions to the ledger one at a time.
//
// Each intention is applied to a copy of the current board; the copy replaces
// the current board only once its block has been appended to the store. A
// rejected intention or a failed append therefore leaves no trace.
type Driver struct {
	config *DriverConfig
	log    *slog.Logger

	mu    sync.Mutex
	board *board.Board
	head  *Block
}

var _ board.Driver = (*Driver)(nil)

// NewDriver loads and replays the stored chain, then accepts new intentions.
func NewDriver(ctx context.Context, config *DriverConfig) (*Driver, error) {
	if config.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if config.Board == nil {
		config.Board = protocol.DefaultBoardConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	log := config.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	blocks, err := config.Store.Blocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	b, err := Replay(config.Board, blocks)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		config: config,
		log:    log,
		board:  b,
	}
	if len(blocks) > 0 {
		d.head = blocks[len(blocks)-1]
	}

	snap := b.Snapshot()
	log.Info("Ledger loaded", "blocks", len(blocks), "total_posts", snap.TotalPosts, "occupied", snap.Occupied)
	return d, nil
}

// Submit applies and commits a single intention.
func (d *Driver) Submit(ctx context.Context, intention *protocol.Intention) (*board.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	candidate := d.board.Clone()
	snap, err := candidate.Apply(intention)
	if err != nil {
		d.log.Debug("Intention rejected", "kind", kindOf(intention), "err", err)
		return nil, err
	}

	block, err := newBlock(d.head, d.config.Now().UnixMilli(), intention, snap)
	if err != nil {
		return nil, err
	}

	if err := d.config.Store.Append(ctx, block); err != nil {
		return nil, fmt.Errorf("committing block %d: %w", block.Index, err)
	}

	d.board = candidate
	d.head = block

	d.log.Info("Committed transition",
		"index", block.Index,
		"kind", intention.Kind,
		"total_posts", snap.TotalPosts,
		"upvotes", snap.Upvotes,
		"downvotes", snap.Downvotes)

	if d.config.Publisher != nil {
		if err := d.config.Publisher.Publish(ctx, snap.Clone()); err != nil {
			d.log.Warn("Could not publish snapshot", "index", block.Index, "err", err)
		}
	}

	return snap, nil
}

// Snapshot returns the latest committed state.
func (d *Driver) Snapshot(ctx context.Context) (*board.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.board.Snapshot(), nil
}

// Head returns the last committed block, or nil before the first commit.
func (d *Driver) Head() *Block {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.head == nil {
		return nil
	}
	c := *d.head
	return &c
}

// Blocks returns the committed chain from the store.
func (d *Driver) Blocks(ctx context.Context) ([]*Block, error) {
	return d.config.Store.Blocks(ctx)
}

// Verify re-reads the stored chain and checks that it replays to the
// driver's current state. Commits wait until it returns.
func (d *Driver) Verify(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	blocks, err := d.config.Store.Blocks(ctx)
	if err != nil {
		return err
	}
	replayed, err := Replay(d.config.Board, blocks)
	if err != nil {
		return err
	}

	if !replayed.Snapshot().Equal(d.board.Snapshot()) {
		return fmt.Errorf("%w: stored chain does not match live state", ErrInvalidChain)
	}
	return nil
}

func kindOf(intention *protocol.Intention) protocol.IntentionKind {
	if intention == nil {
		return ""
	}
	return intention.Kind
}
