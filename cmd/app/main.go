package main

import (
	"context"
	"flag"
	"log"
	"os"

	"EduPulse/internal/di"
	"EduPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	app, cleanup, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	log.Printf("env=%s audit=%s events=%t port=%d", cfg.Environment, cfg.Audit.Sink, cfg.Events.Enabled, cfg.Server.Port)

	// Run blocks until SIGINT/SIGTERM
	err = app.Run(ctx)
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
