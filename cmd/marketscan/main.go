package main

import (
	"os"

	"github.com/wonny/marketscan/backend/cmd/marketscan/commands"
)

// main is the entry point for the marketscan CLI
// ⭐ single entry point: go run ./cmd/marketscan [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
