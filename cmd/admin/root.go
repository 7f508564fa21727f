package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"repartos/internal/config"
	"repartos/internal/infra"
	"repartos/internal/router"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operational tasks for the repartos backend",
	Long: `admin connects with the same DATABASE_URL / REDIS_URL as the server
(.env is honoured) and runs one-off maintenance tasks.`,
	SilenceUsage: true,
}

func Execute() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// connect loads config and builds the same dependency graph as the server.
func connect() (*config.Config, *router.Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return cfg, router.NewDeps(cfg, db, rdb), nil
}
