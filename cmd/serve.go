package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrismeller/mj/internal/app"
	"github.com/chrismeller/mj/internal/db"
	httpSrv "github.com/chrismeller/mj/internal/http"
	"github.com/chrismeller/mj/internal/http/middleware"
	"github.com/chrismeller/mj/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := app.Bootstrap(cfgPath)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		sqlDB, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		svc, err := app.NewClientService(cfg, sqlDB, log)
		if err != nil {
			return err
		}

		deps := httpSrv.Deps{Clients: svc, Log: log}

		// Redis and ClickHouse are optional: without them the rate limit and reports are off.
		if cfg.RateLimit.RPS > 0 {
			redisClient, err := db.NewRedisClient(cmd.Context(), db.RedisOpts{
				Addr:        cfg.Redis.Addr,
				Password:    cfg.Redis.Password,
				DB:          cfg.Redis.DB,
				DialTimeout: cfg.Redis.DialTimeout,
			})
			if err != nil {
				log.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
			} else {
				defer func() { _ = redisClient.Close() }()
				deps.RateCounter = middleware.RedisCounter{Redis: redisClient}
			}
		}

		if cfg.ClickHouse.DSN != "" {
			chDB, err := app.OpenClickHouse(cfg)
			if err != nil {
				log.Warn("clickhouse unavailable, reports disabled", zap.Error(err))
			} else {
				defer func() { _ = chDB.Close() }()
				deps.Events = repository.NewClientEventsRepository(chDB)
			}
		}

		server := httpSrv.NewServer(cfg, deps)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server exited: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
