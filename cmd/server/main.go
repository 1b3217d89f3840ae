// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/okeyhub/okey101/internal/archive"
	"github.com/okeyhub/okey101/internal/auth"
	"github.com/okeyhub/okey101/internal/cache"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/config"
	"github.com/okeyhub/okey101/internal/database"
	"github.com/okeyhub/okey101/internal/handlers"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
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
		logger.Fatalf("server exited: %v", err)
	}
}

func realMain(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	var issuer *auth.Issuer
	var err error
	if cfg.PrivateKeyPath != "" {
		issuer, err = auth.NewIssuerFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenTTL)
	} else {
		issuer, err = auth.NewIssuer(cfg.TokenTTL)
	}
	if err != nil {
		return fmt.Errorf("ticket issuer: %w", err)
	}

	evaluator, err := combo.NewEvaluator(cfg.EvalCacheSize)
	if err != nil {
		return fmt.Errorf("can not create evaluation cache: %w", err)
	}

	gs := handlers.NewGameServer(logger, issuer, evaluator, cfg.Rules())

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := database.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		gs.Recorders = append(gs.Recorders, store)
		logger.Info("Recording matches to Postgres")
	}

	if cfg.ArchivePath != "" {
		arch, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer arch.Close()
		gs.Recorders = append(gs.Recorders, arch)
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		queue := cache.NewQueue(rdb, cfg.ActionQueue)
		defer queue.Close()
		gs.Publisher = queue
		logger.Infof("Publishing actions to %s", queue.Name())
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.Routes(gs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		gs.Shutdown()
		return err
	})
	return g.Wait()
}
