// ABOUTME: Entry point for the commons server and admin CLI
// ABOUTME: Builds the cobra command tree and runs it under a signal-aware context

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ ___  _ __ ___  _ __ ___   ___  _ __  ___
 / __/ _ \| '_ ' _ \| '_ ' _ \ / _ \| '_ \/ __|
| (_| (_) | | | | | | | | | | | (_) | | | \__ \
 \___\___/|_| |_| |_|_| |_| |_|\___/|_| |_|___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
