package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ai-force-assess/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.RootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
