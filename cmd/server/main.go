package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/donbr/treat-or-hell/internal/api"
	"github.com/donbr/treat-or-hell/internal/config"
	"github.com/donbr/treat-or-hell/internal/core"
	"github.com/donbr/treat-or-hell/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctxStore := store.New(store.Config{
		RedisURL:   cfg.RedisURL,
		RedisToken: cfg.RedisToken,
		FilePath:   cfg.StoragePath,
	}, logger)

	completions := core.NewCompletionService(cfg.OpenAIAPIKey, cfg.OpenAIMaxTokens, cfg.OpenAITemperature, logger)
	angel := core.NewAngelService(ctxStore, completions, cfg.OpenAIModel, logger)

	apiHandler := api.NewAPIHandler(angel, ctxStore, logger)
	router := api.NewRouter(apiHandler, logger)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.WithFields(logrus.Fields{"addr": serverAddr, "model": cfg.OpenAIModel}).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	if closer, ok := ctxStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Warn("Error closing storage backend")
		}
	}

	logger.Info("Server exiting gracefully")
}
