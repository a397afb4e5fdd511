// Command lattica runs a weighted-majority block confirmation engine
// and provides client commands for its HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordian-engine/lattica/cmd/lattica/internal/latticacmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := latticacmd.NewRootCmd().ExecuteContext(ctx); err != nil {
		// Cobra has already printed the error.
		cancel()
		os.Exit(1)
	}
}
