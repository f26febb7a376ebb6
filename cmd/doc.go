// Package cmd holds the anonboard binaries.
//
// # Commands
//
// board-server: Runs the board. Commits every accepted intention to the
// ledger, serves snapshots over HTTP and a websocket, and optionally mirrors
// signed snapshots to a redis channel.
//
//	go run ./cmd/board-server --addr=:8080
//	go run ./cmd/board-server --ledger=sqlite --sqlite-path=./data/board.db --redis=localhost:6379
//	go run ./cmd/board-server --config=board.yaml
//
// board-cli: Participant CLI. Keeps the credential in a local file and only
// ever sends author tags derived from it.
//
//	go run ./cmd/board-cli post "I never read the docs"
//	go run ./cmd/board-cli vote up
//	go run ./cmd/board-cli show --json
//	go run ./cmd/board-cli watch --redis-addr=localhost:6379
//	go run ./cmd/board-cli credential --slot=0
//
// # Configuration
//
// board-server reads a YAML file via --config. Command-line flags override
// values from the file.
//
//	http_addr: ":8080"
//	operator_key: ""
//	board:
//	  max_content_length: 1024
//	ledger:
//	  driver: "postgres"
//	  postgres:
//	    host: "localhost"
//	    port: 5432
//	    user: "postgres"
//	    database: "anonboard"
//	    sslmode: "disable"
//	feed:
//	  redis_addr: "localhost:6379"
//	  redis_channel: "anonboard:snapshots"
//	cors_origins: ["*"]
//	log:
//	  format: "json"
//	  level: "info"
//
// An empty operator_key generates a fresh key on every start, which changes
// the key clients pin.
package cmd
