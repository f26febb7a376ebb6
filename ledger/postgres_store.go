package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresStore implements Store with PostgreSQL persistence.
type PostgresStore struct {
	sqlStore
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS board_blocks (
	block_index BIGINT PRIMARY KEY,
	prev_hash VARCHAR(64) NOT NULL,
	hash VARCHAR(64) NOT NULL UNIQUE,
	state_hash VARCHAR(64) NOT NULL,
	committed_at BIGINT NOT NULL,
	intention JSONB NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

// postgresUniqueViolation is the SQLSTATE for unique_violation.
const postgresUniqueViolation = "23505"

// NewPostgresStore connects, pings and migrates a PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{sqlStore{db: db, dialect: postgresDialect()}}

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer migrateCancel()
	if err := store.migrate(migrateCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func postgresDialect() sqlDialect {
	return sqlDialect{
		schema: postgresSchema,
		insertBlock: `
		INSERT INTO board_blocks
			(block_index, prev_hash, hash, state_hash, committed_at, intention)
		VALUES ($1, $2, $3, $4, $5, $6)
		`,
		selectAll: `
		SELECT block_index, prev_hash, hash, state_hash, committed_at, intention
		FROM board_blocks
		ORDER BY block_index
		`,
		isConflict: func(err error) bool {
			var pqErr *pq.Error
			return errors.As(err, &pqErr) && pqErr.Code == postgresUniqueViolation
		},
	}
}
