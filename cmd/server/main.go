package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GetStream/careerchat/api"
	"github.com/GetStream/careerchat/api/validator"
	"github.com/GetStream/careerchat/chat"
	"github.com/GetStream/careerchat/config"
	"github.com/GetStream/careerchat/openai"
	"github.com/GetStream/careerchat/postgres"
	"github.com/GetStream/careerchat/ratelimit"
	"github.com/GetStream/careerchat/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	svc := &chat.Service{
		Store: pg,
		Completer: openai.New(openai.Config{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}),
		Logger:     logger,
		WindowSize: cfg.ContextWindow,
	}

	var limiter ratelimit.Limiter = ratelimit.NewWindow(cfg.RateLimitWindow, cfg.RateLimitMax)
	if cfg.RedisAddr != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()

		svc.Invalidator = rdb
		svc.Cache = rdb
		if cfg.RateLimitBackend == config.BackendRedis {
			limiter = rdb.Limiter(cfg.RateLimitWindow, cfg.RateLimitMax)
		}
	}
	logger.Info("rate limiter configured",
		"backend", cfg.RateLimitBackend,
		"window", cfg.RateLimitWindow,
		"max", cfg.RateLimitMax)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: &api.API{
			Logger:     logger,
			Chat:       svc,
			Limiter:    limiter,
			Val:        validator.New(),
			TrustProxy: cfg.TrustProxy,
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
