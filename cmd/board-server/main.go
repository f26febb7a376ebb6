// Command board-server runs a confession board operator.
//
// The server owns the board state. It commits every post and vote to the
// ledger store, signs each resulting snapshot with the operator key and
// streams snapshots to watchers over websocket and, optionally, redis.
//
// # Configuration
//
// Settings come from a YAML file (--config) with command line flags taking
// precedence:
//
//	http_addr: ":8080"
//	operator_key: ""            # hex Ed25519 key, generated if empty
//	board:
//	  max_content_length: 1024
//	ledger:
//	  driver: sqlite            # memory | sqlite | postgres
//	  sqlite_path: ./data/board.db
//	feed:
//	  redis_addr: localhost:6379
//
// An operator key generated at startup changes on every restart, so
// participants pinning the key will reject the new server. Set operator_key
// for long-running boards.
//
// # Usage
//
//	go run ./cmd/board-server --config=board.yaml
//	go run ./cmd/board-server --ledger=sqlite --sqlite-path=./data/board.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashbots/anonboard/api/httpserver"
	"github.com/flashbots/anonboard/cmd/common"
	"github.com/flashbots/anonboard/feed"
	"github.com/flashbots/anonboard/ledger"
	"github.com/flashbots/anonboard/services"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		operatorKey = flag.String("operator-key", "", "Ed25519 operator key (hex, generates if empty)")
		ledgerKind  = flag.String("ledger", "", "Ledger store: memory, sqlite or postgres")
		sqlitePath  = flag.String("sqlite-path", "", "SQLite ledger path")
		redisAddr   = flag.String("redis", "", "Redis address for the snapshot feed")
		maxContent  = flag.Int("max-content", -1, "Maximum confession length in bytes (0 = unlimited)")
		logFormat   = flag.String("log-format", "", "Log format: text or json")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		pprof       = flag.Bool("pprof", false, "Serve pprof under /debug")
	)
	flag.Parse()

	isFlagSet := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	applyFlagOverrides(cfg, *addr, *operatorKey, *ledgerKind, *sqlitePath, *redisAddr,
		*maxContent, *logFormat, *logLevel, isFlagSet("addr"))

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg, *pprof); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func applyFlagOverrides(cfg *common.Config, addr, operatorKey, ledgerKind, sqlitePath,
	redisAddr string, maxContent int, logFormat, logLevel string, addrExplicit bool) {

	if addrExplicit {
		cfg.HTTPAddr = addr
	} else if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = addr
	}
	if operatorKey != "" {
		cfg.OperatorKey = operatorKey
	}
	if ledgerKind != "" {
		cfg.Ledger.Driver = ledgerKind
	}
	if sqlitePath != "" {
		cfg.Ledger.SQLitePath = sqlitePath
	}
	if redisAddr != "" {
		cfg.Feed.RedisAddr = redisAddr
	}
	if maxContent >= 0 {
		cfg.Board.MaxContentLength = maxContent
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

func run(ctx context.Context, cfg *common.Config, enablePprof bool) error {
	log, err := common.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	signingKey, err := common.LoadOrGenerateSigningKey(cfg.OperatorKey)
	if err != nil {
		return fmt.Errorf("operator key: %w", err)
	}
	pubKey, _ := signingKey.PublicKey()
	if cfg.OperatorKey == "" {
		log.Warn("Generated an ephemeral operator key; set operator_key to keep it across restarts")
	}
	log.Info("Operator key loaded", "public_key", pubKey.String())

	store, err := common.OpenLedgerStore(&cfg.Ledger)
	if err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	defer store.Close()

	hub := feed.NewHub(nil)
	publishers := feed.Fanout{hub}

	redisPub, err := common.NewRedisPublisher(ctx, &cfg.Feed, signingKey)
	if err != nil {
		return fmt.Errorf("snapshot feed: %w", err)
	}
	if redisPub != nil {
		defer redisPub.Close()
		publishers = append(publishers, redisPub)
		log.Info("Publishing snapshots to redis", "addr", cfg.Feed.RedisAddr, "channel", cfg.Feed.RedisChannel)
	}

	driver, err := ledger.NewDriver(ctx, &ledger.DriverConfig{
		Board:     &cfg.Board,
		Store:     store,
		Publisher: publishers,
		Log:       log.With("component", "ledger"),
	})
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}

	current, _ := driver.Snapshot(ctx)
	hub.Publish(ctx, current)

	svc, err := services.NewBoardService(&services.BoardServiceConfig{
		Ledger:     driver,
		Hub:        hub,
		SigningKey: signingKey,
		Log:        log.With("component", "api"),
	})
	if err != nil {
		return err
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		EnablePprof:              enablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
		CORSOrigins:              cfg.CORSOrigins,
		ReadinessCheck: func(ctx context.Context) error {
			_, err := store.Blocks(ctx)
			return err
		},
	}, svc)
	if err != nil {
		return err
	}

	srv.RunInBackground()
	<-ctx.Done()

	log.Info("Shutting down")
	srv.Shutdown()
	return nil
}
