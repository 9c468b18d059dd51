package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Aerovity/Orchestry/cmd"
)

func main() {
	// Interrupts cancel the run context so in-flight episodes unwind and
	// partial results still get persisted.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
