// Package app wires the service together and runs it until it receives a signal.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/alex-user-go/stayfinder/internal/config"
	"github.com/alex-user-go/stayfinder/internal/events"
	"github.com/alex-user-go/stayfinder/internal/feeds"
	"github.com/alex-user-go/stayfinder/internal/handler"
	"github.com/alex-user-go/stayfinder/internal/middleware"
	"github.com/alex-user-go/stayfinder/internal/obs"
	"github.com/alex-user-go/stayfinder/internal/ratelimit"
	"github.com/alex-user-go/stayfinder/internal/results"
	"github.com/alex-user-go/stayfinder/internal/session"
	"github.com/alex-user-go/stayfinder/internal/store"
)

// Run loads the configuration at configPath and serves until SIGINT or SIGTERM.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := obs.NewMetrics(logger)

	snapshots, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "snapshot store", snapshots)

	source := feeds.NewCachingSource(
		feeds.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout),
		snapshots,
		cfg.Cache.HotelsTTL,
		cfg.Cache.PricesTTL,
		metrics,
		logger,
	)

	publisher := newPublisher(cfg)
	defer closeQuietly(logger, "event publisher", publisher)

	ctrlCfg := results.Config{
		HotelsInterval:  cfg.Polling.HotelsInterval,
		PricesInterval:  cfg.Polling.PricesInterval,
		EmptyStateDelay: cfg.Results.EmptyStateDelay,
	}
	sessions := session.NewRegistry(func(id string, q feeds.PriceQuery) *results.Controller {
		return results.NewController(id, q, source, ctrlCfg, publisher, metrics, logger)
	}, cfg.Session.IdleTTL, metrics, logger)
	defer sessions.Close()

	limiter := ratelimit.New(cfg.RateLimit.Rate, cfg.RateLimit.Window)
	defer limiter.Close()

	router := mux.NewRouter()
	handler.New(sessions, limiter, metrics, logger).Routes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      middleware.Logging(logger)(middleware.Recover(logger)(router)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", srv.Addr,
			"upstream", cfg.Upstream.BaseURL,
			"cache", cfg.Cache.Backend,
			"events", len(cfg.Kafka.Brokers) > 0,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server", "sessions", sessions.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

type closingStore interface {
	store.Store
	io.Closer
}

func openStore(ctx context.Context, cfg *config.Config) (closingStore, error) {
	if cfg.Cache.Backend == "redis" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		st, err := store.NewRedisStore(dialCtx, cfg.Redis.Addr, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		return st, nil
	}
	return store.NewMemoryStore(time.Minute), nil
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "component", name, "error", err)
	}
}
