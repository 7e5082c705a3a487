// Web server exposing the assessment platform's REST API.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"ai-force-assess/internal/web"
)

func main() {
	configDir := flag.String("config-dir", "", "Directory containing assess.yaml")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	mock := flag.Bool("mock", false, "Use the in-memory mock store")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := web.Run(ctx, web.Options{
		ConfigDir: *configDir,
		Addr:      *addr,
		Mock:      *mock,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
