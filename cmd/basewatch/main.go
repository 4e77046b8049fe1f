// Package main provides the entry point for the basewatch CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/savegress/basewatch/cmd/basewatch/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
