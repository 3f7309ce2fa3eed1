package main

import (
	"os"

	"Pace/cmd/app/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
