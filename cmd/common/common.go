// Package common provides shared utilities for the board binaries.
//
// It holds the YAML configuration of board-server, key loading, and the
// factories that turn configuration into a ledger store and a snapshot
// publisher.
package common

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/feed"
	"github.com/flashbots/anonboard/ledger"
	"github.com/redis/go-redis/v9"
)

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		key, err := crypto.NewPrivateKeyFromString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key: %w", err)
		}
		return key, nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// OpenLedgerStore opens the store selected by cfg.Driver.
func OpenLedgerStore(cfg *LedgerConfig) (ledger.Store, error) {
	switch cfg.Driver {
	case "", LedgerMemory:
		return ledger.NewMemoryStore(), nil
	case LedgerSQLite:
		return ledger.OpenSQLite(cfg.SQLitePath)
	case LedgerPostgres:
		return ledger.NewPostgresStore(&cfg.Postgres)
	}
	return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
}

// NewRedisPublisher connects a redis snapshot publisher, or returns nil when
// no redis address is configured.
func NewRedisPublisher(ctx context.Context, cfg *FeedConfig, signingKey crypto.PrivateKey) (*feed.RedisPublisher, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	pub, err := feed.NewRedisPublisher(&redis.Options{Addr: cfg.RedisAddr}, cfg.RedisChannel, signingKey)
	if err != nil {
		return nil, err
	}
	if err := pub.Ping(ctx); err != nil {
		pub.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return pub, nil
}

// NewLogger returns a logger writing to stderr in the given format
// ("text" or "json") at the given level.
func NewLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}
