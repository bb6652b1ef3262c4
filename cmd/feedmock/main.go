// Command feedmock serves the upstream hotel and price endpoints with fake data
// for local development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func main() {
	port := getEnv("PORT", "9001")
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	completeAfter, err := strconv.Atoi(getEnv("COMPLETE_AFTER", "3"))
	if err != nil || completeAfter < 1 {
		logger.Error("COMPLETE_AFTER must be a positive integer", "value", os.Getenv("COMPLETE_AFTER"))
		os.Exit(1)
	}
	failureRate, err := strconv.ParseFloat(getEnv("FAILURE_RATE", "0.1"), 64)
	if err != nil || failureRate < 0 || failureRate > 1 {
		logger.Error("FAILURE_RATE must be between 0 and 1", "value", os.Getenv("FAILURE_RATE"))
		os.Exit(1)
	}

	feed := NewFeed(Options{
		CompleteAfter: completeAfter,
		FailureRate:   failureRate,
		MinLatency:    50 * time.Millisecond,
		MaxLatency:    300 * time.Millisecond,
		Seed:          time.Now().UnixNano(),
	}, logger)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      feed.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("feed mock listening", "addr", srv.Addr, "complete_after", completeAfter, "failure_rate", failureRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down feed mock")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
