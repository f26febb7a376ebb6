package common

import (
	"fmt"
	"os"

	"github.com/flashbots/anonboard/feed"
	"github.com/flashbots/anonboard/ledger"
	"github.com/flashbots/anonboard/protocol"
	"gopkg.in/yaml.v3"
)

// Ledger store drivers.
const (
	LedgerMemory   = "memory"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Config is the board-server configuration file.
type Config struct {
	HTTPAddr    string               `yaml:"http_addr"`
	OperatorKey string               `yaml:"operator_key"`
	Board       protocol.BoardConfig `yaml:"board"`
	Ledger      LedgerConfig         `yaml:"ledger"`
	Feed        FeedConfig           `yaml:"feed"`
	CORSOrigins []string             `yaml:"cors_origins"`
	Log         LogConfig            `yaml:"log"`
}

// LedgerConfig selects where committed blocks are stored.
type LedgerConfig struct {
	Driver     string                `yaml:"driver"`
	SQLitePath string                `yaml:"sqlite_path"`
	Postgres   ledger.PostgresConfig `yaml:"postgres"`
}

// FeedConfig enables the redis snapshot feed.
type FeedConfig struct {
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: ":8080",
		Board:    *protocol.DefaultBoardConfig(),
		Ledger: LedgerConfig{
			Driver:     LedgerMemory,
			SQLitePath: "./data/board.db",
			Postgres: ledger.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "anonboard",
				SSLMode:  "disable",
			},
		},
		Feed: FeedConfig{
			RedisChannel: feed.DefaultChannel,
		},
		CORSOrigins: []string{"*"},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if c.Board.MaxContentLength < 0 {
		return fmt.Errorf("board.max_content_length must not be negative")
	}
	switch c.Ledger.Driver {
	case LedgerMemory, LedgerSQLite, LedgerPostgres:
	default:
		return fmt.Errorf("ledger.driver must be one of %s, %s, %s", LedgerMemory, LedgerSQLite, LedgerPostgres)
	}
	if c.Ledger.Driver == LedgerSQLite && c.Ledger.SQLitePath == "" {
		return fmt.Errorf("ledger.sqlite_path is required for the sqlite driver")
	}
	return nil
}
