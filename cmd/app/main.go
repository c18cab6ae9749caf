package main

import (
	"flag"
	"log"

	"FxPulse/internal/di"
	"FxPulse/pkg/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fxpulse: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return err
	}

	log.Printf("env=%s symbols=%v journal=%s queue=%s",
		cfg.Environment, cfg.Feed.Symbols, cfg.Journal.Backend, cfg.Queue.Backend)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}

	// Blocks until a shutdown signal arrives.
	return app.Run()
}
