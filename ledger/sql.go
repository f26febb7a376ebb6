package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/flashbots/anonboard/protocol"
)

// sqlDialect holds the statements that differ between database engines.
type sqlDialect struct {
	schema      string
	insertBlock string
	selectAll   string
	isConflict  func(error) bool
}

// sqlStore implements Store on top of database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect sqlDialect
}

func (s *sqlStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

// Append inserts block; an existing index is reported as ErrConflict.
func (s *sqlStore) Append(ctx context.Context, block *Block) error {
	intention, err := json.Marshal(&block.Intention)
	if err != nil {
		return fmt.Errorf("encoding intention: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.dialect.insertBlock,
		int64(block.Index),
		block.PrevHash,
		block.Hash,
		block.StateHash,
		block.CommittedAt,
		string(intention),
	)
	if err != nil {
		if s.dialect.isConflict(err) {
			return fmt.Errorf("%w: index %d", ErrConflict, block.Index)
		}
		return fmt.Errorf("inserting block %d: %w", block.Index, err)
	}
	return nil
}

// Blocks loads every block ordered by index.
func (s *sqlStore) Blocks(ctx context.Context) ([]*Block, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.selectAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		var (
			index     int64
			intention string
			block     Block
		)
		if err := rows.Scan(&index, &block.PrevHash, &block.Hash, &block.StateHash, &block.CommittedAt, &intention); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		block.Index = uint64(index)

		decoded, err := protocol.UnmarshalMessage[protocol.Intention]([]byte(intention))
		if err != nil {
			return nil, fmt.Errorf("decoding intention of block %d: %w", index, err)
		}
		block.Intention = *decoded

		blocks = append(blocks, &block)
	}

	return blocks, rows.Err()
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}
