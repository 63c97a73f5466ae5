package main

import (
	"os"

	"github.com/wonny/hedgefund/cmd/hedgefund/commands"
)

// main is the entry point for the hedge fund CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/hedgefund [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
