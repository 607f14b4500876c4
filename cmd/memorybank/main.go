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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/auth"
	"github.com/pratibhabharti18/Memory-Bank/internal/reasoning"
	"github.com/pratibhabharti18/Memory-Bank/internal/server"
	"github.com/pratibhabharti18/Memory-Bank/internal/storage"
	"github.com/pratibhabharti18/Memory-Bank/pkg/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "memorybank",
		Short: "Personal second-brain service: capture notes, let AI build the knowledge around them",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Memory Bank HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	// Initialize storage
	var backend storage.Storage
	switch cfg.Storage.Backend {
	case "postgres":
		logger.Info("Using PostgreSQL storage")
		backend, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	case "memory":
		logger.Info("Using in-memory storage")
		backend = storage.NewMemoryStorage()
	default:
		logger.Info("Using local file storage", zap.String("data_dir", cfg.Storage.DataDir))
		backend, err = storage.NewFileStorage(cfg.Storage.DataDir, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer backend.Close()

	// Initialize the reasoning client
	reasoner := reasoning.NewOpenAIService(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.ChatModel,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		cfg.Reasoning.MaxInsights,
		logger,
	)

	// Initialize auth with the external identity verifier
	authSvc := auth.NewService(auth.NewTokenInfoVerifier(cfg.Auth.GoogleClientID), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(ctx, authSvc, backend, reasoner, cfg.Reasoning.Timeout(), logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Memory Bank listening", zap.String("addr", cfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
			return err
		}
		return nil
	}
}
