package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/protocol"
	"golang.org/x/crypto/sha3"
)

// GenesisHash is the PrevHash of the first block.
var GenesisHash = hex.EncodeToString(make([]byte, 32))

var ErrInvalidChain = errors.New("invalid ledger chain")

// Block records one committed transition.
type Block struct {
	Index       uint64             `json:"index"`
	PrevHash    string             `json:"prev_hash"`
	Hash        string             `json:"hash"`
	CommittedAt int64              `json:"committed_at"`
	Intention   protocol.Intention `json:"intention"`
	// StateHash commits to the snapshot produced by applying Intention.
	StateHash string `json:"state_hash"`
}

// blockHeader is the hashed part of a block.
type blockHeader struct {
	Index       uint64             `cbor:"1,keyasint"`
	PrevHash    string             `cbor:"2,keyasint"`
	CommittedAt int64              `cbor:"3,keyasint"`
	Intention   protocol.Intention `cbor:"4,keyasint"`
	StateHash   string             `cbor:"5,keyasint"`
}

// snapshotRecord fixes the encoding of a snapshot for hashing.
type snapshotRecord struct {
	Occupied   bool   `cbor:"1,keyasint"`
	Content    string `cbor:"2,keyasint"`
	AuthorTag  []byte `cbor:"3,keyasint"`
	Upvotes    uint64 `cbor:"4,keyasint"`
	Downvotes  uint64 `cbor:"5,keyasint"`
	PostedAt   uint64 `cbor:"6,keyasint"`
	TotalPosts uint64 `cbor:"7,keyasint"`
}

// StateHash returns the SHA3-256 of the canonical encoding of snap.
func StateHash(snap *board.Snapshot) (string, error) {
	encoded, err := protocol.MarshalCanonical(&snapshotRecord{
		Occupied:   snap.Occupied,
		Content:    snap.Content,
		AuthorTag:  snap.AuthorTag[:],
		Upvotes:    snap.Upvotes,
		Downvotes:  snap.Downvotes,
		PostedAt:   snap.PostedAt,
		TotalPosts: snap.TotalPosts,
	})
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// ComputeHash returns the hash of the block header.
func (b *Block) ComputeHash() (string, error) {
	encoded, err := protocol.MarshalCanonical(&blockHeader{
		Index:       b.Index,
		PrevHash:    b.PrevHash,
		CommittedAt: b.CommittedAt,
		Intention:   b.Intention,
		StateHash:   b.StateHash,
	})
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func newBlock(prev *Block, committedAt int64, intention *protocol.Intention, snap *board.Snapshot) (*Block, error) {
	stateHash, err := StateHash(snap)
	if err != nil {
		return nil, fmt.Errorf("hashing state: %w", err)
	}

	block := &Block{
		PrevHash:    GenesisHash,
		CommittedAt: committedAt,
		Intention:   *intention,
		StateHash:   stateHash,
	}
	if prev != nil {
		block.Index = prev.Index + 1
		block.PrevHash = prev.Hash
	}

	block.Hash, err = block.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("hashing block: %w", err)
	}
	return block, nil
}

func validateLink(current, previous *Block) error {
	if previous == nil {
		if current.Index != 0 {
			return fmt.Errorf("first block has index %d", current.Index)
		}
		if current.PrevHash != GenesisHash {
			return errors.New("first block does not link to genesis")
		}
	} else {
		if current.Index != previous.Index+1 {
			return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
		}
		if current.PrevHash != previous.Hash {
			return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
		}
	}

	expected, err := current.ComputeHash()
	if err != nil {
		return err
	}
	if current.Hash != expected {
		return fmt.Errorf("invalid hash: expected %s, got %s", expected, current.Hash)
	}
	return nil
}

// Replay verifies the chain and re-applies every intention to a fresh board.
// Each block's StateHash must match the replayed state.
func Replay(config *protocol.BoardConfig, blocks []*Block) (*board.Board, error) {
	b := board.New(config)

	var prev *Block
	for _, block := range blocks {
		if err := validateLink(block, prev); err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrInvalidChain, block.Index, err)
		}

		snap, err := b.Apply(&block.Intention)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d does not apply: %v", ErrInvalidChain, block.Index, err)
		}

		stateHash, err := StateHash(snap)
		if err != nil {
			return nil, err
		}
		if stateHash != block.StateHash {
			return nil, fmt.Errorf("%w: block %d state hash mismatch", ErrInvalidChain, block.Index)
		}

		prev = block
	}

	return b, nil
}
