package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrConflict is returned by Append when a block with the same index exists.
var ErrConflict = errors.New("block index already committed")

// Store persists committed blocks in order.
type Store interface {
	Append(ctx context.Context, block *Block) error
	Blocks(ctx context.Context) ([]*Block, error)
	Close() error
}

// MemoryStore implements Store for testing and ephemeral boards.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks []*Block
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of block.
func (s *MemoryStore) Append(ctx context.Context, block *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.Index != uint64(len(s.blocks)) {
		return ErrConflict
	}

	c := *block
	s.blocks = append(s.blocks, &c)
	return nil
}

// Blocks returns copies of all stored blocks.
func (s *MemoryStore) Blocks(ctx context.Context) ([]*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Block, 0, len(s.blocks))
	for _, b := range s.blocks {
		c := *b
		result = append(result, &c)
	}
	return slices.Clip(result), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
