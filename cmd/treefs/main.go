package main

import (
	"os"

	"github.com/treefs/treefs/cmd/treefs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
