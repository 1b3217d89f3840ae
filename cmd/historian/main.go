// cmd/historian/main.go pops room actions from the Redis queue and persists them to Postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/okeyhub/okey101/internal/cache"
	"github.com/okeyhub/okey101/internal/config"
	"github.com/okeyhub/okey101/internal/database"
	"github.com/okeyhub/okey101/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("processing the config: %v", err)
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := realMain(ctx, cfg, logger); err != nil {
		logger.Fatalf("historian exited: %v", err)
	}
}

func realMain(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	if cfg.DatabaseURL == "" || cfg.RedisAddr == "" {
		return fmt.Errorf("historian needs both OKEY_DATABASE_URL and OKEY_REDIS_ADDR")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := database.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	queue := cache.NewQueue(rdb, cfg.ActionQueue)
	defer queue.Close()

	logger.Infof("Draining %s into Postgres", queue.Name())
	return historian.New(queue, store, cfg.Historian(), logger).Run(ctx)
}
