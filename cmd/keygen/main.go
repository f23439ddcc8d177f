package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ecocash-activation/internal/config"
	pg "ecocash-activation/internal/infra/db/postgres"
	"ecocash-activation/internal/infra/logging"
	"ecocash-activation/internal/usecase"
)

// keygen mints operator unlock keys directly against the database, for
// support cases where the admin API is not reachable.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	n := flag.Int("n", 1, "number of unlock keys to mint (1-100)")
	ttl := flag.Duration("ttl", 0, "key lifetime; defaults to subscription.unlock_key_ttl")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(config.LogConfig{Level: "warn", Format: "console"}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, config.DatabaseConfig{URL: cfg.Database.URL, MaxConns: 2})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Subscription.UnlockKeyTTL
	}

	issuerUC := usecase.NewIssuerUseCase(pg.NewCodeRepo(pool), pg.NewTxManager(pool), logger)
	codes, err := issuerUC.IssueBatch(ctx, *n, lifetime)
	if err != nil {
		log.Fatalf("mint keys (none written): %v", err)
	}
	for _, c := range codes {
		fmt.Printf("%s  expires %s\n", c.Value, c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	fmt.Printf("✅ %d unlock key(s) minted.\n", len(codes))
}
