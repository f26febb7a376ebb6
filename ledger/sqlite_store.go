package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store in an embedded SQLite file.
type SQLiteStore struct {
	sqlStore
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS board_blocks (
	block_index INTEGER PRIMARY KEY,
	prev_hash TEXT NOT NULL,
	hash TEXT NOT NULL UNIQUE,
	state_hash TEXT NOT NULL,
	committed_at INTEGER NOT NULL,
	intention TEXT NOT NULL
);
`

// OpenSQLite opens (creating if needed) a ledger database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; the driver serializes commits anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring sqlite: %w", err)
		}
	}

	store := &SQLiteStore{sqlStore{db: db, dialect: sqliteDialect()}}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func sqliteDialect() sqlDialect {
	return sqlDialect{
		schema: sqliteSchema,
		insertBlock: `
		INSERT INTO board_blocks
			(block_index, prev_hash, hash, state_hash, committed_at, intention)
		VALUES (?, ?, ?, ?, ?, ?)
		`,
		selectAll: `
		SELECT block_index, prev_hash, hash, state_hash, committed_at, intention
		FROM board_blocks
		ORDER BY block_index
		`,
		isConflict: func(err error) bool {
			return strings.Contains(err.Error(), "UNIQUE constraint failed")
		},
	}
}
