// Command board-cli posts to, votes on and watches a confession board.
//
// The participant credential lives in a local file (--credential) and never
// leaves the machine: posts carry only the author tag derived from it.
//
// # Usage
//
//	go run ./cmd/board-cli post "I still use tabs"
//	go run ./cmd/board-cli vote up
//	go run ./cmd/board-cli show
//	go run ./cmd/board-cli watch
package main

import (
	"os"

	"github.com/flashbots/anonboard/cmd/board-cli/commands"
	"github.com/pterm/pterm"
)

func main() {
	if err := commands.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
