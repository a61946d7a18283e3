package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/nmoreno/facturia/internal/engine"
	"github.com/nmoreno/facturia/internal/gateway"
	"github.com/nmoreno/facturia/internal/notify"
	"github.com/nmoreno/facturia/internal/service"
	"github.com/nmoreno/facturia/internal/source"
	"github.com/nmoreno/facturia/internal/storage"
)

func databasePath() (string, error) {
	dbPath := viper.GetString("database.path")
	if dbPath != "" {
		return dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "facturia", "facturia.db"), nil
}

func openStorage() (*storage.SQLiteStorage, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func buildOrchestrator(store *storage.SQLiteStorage) (*engine.Orchestrator, error) {
	client, err := gateway.NewClient(gateway.ClientConfig{
		Provider:    viper.GetString("classifier.provider"),
		APIKey:      viper.GetString("classifier.api_key"),
		Model:       viper.GetString("classifier.model"),
		Temperature: viper.GetFloat64("classifier.temperature"),
		MaxTokens:   viper.GetInt("classifier.max_tokens"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client: %w", err)
	}

	gwCfg := gateway.DefaultConfig()
	if quota := viper.GetInt("classifier.requests_per_minute"); quota > 0 {
		gwCfg.Quota = quota
	}
	if window := viper.GetDuration("classifier.rate_window"); window > 0 {
		gwCfg.Window = window
	}
	if threshold := viper.GetInt("classifier.failure_threshold"); threshold > 0 {
		gwCfg.FailureThreshold = threshold
	}
	if cooldown := viper.GetDuration("classifier.circuit_cooldown"); cooldown > 0 {
		gwCfg.Cooldown = cooldown
	}
	if timeout := viper.GetDuration("classifier.call_timeout"); timeout > 0 {
		gwCfg.CallTimeout = timeout
	}
	if delay := viper.GetDuration("classifier.retry_initial_delay"); delay > 0 {
		gwCfg.RetryInitialDelay = delay
	}
	if attempts := viper.GetInt("classifier.retry_max_attempts"); attempts > 0 {
		gwCfg.RetryMaxAttempts = attempts
	}
	gw := gateway.New(client, gateway.NewState(), gwCfg, slog.Default())

	dropDir := viper.GetString("source.dir")
	if dropDir == "" {
		dropDir = "pending"
	}
	src := source.NewDirectorySource(dropDir, viper.GetString("source.sender"), slog.Default())

	engCfg := engine.Config{
		MaxAttempts:     viper.GetInt("ingest.max_attempts"),
		ReviewThreshold: viper.GetFloat64("ingest.review_threshold"),
	}
	return engine.New(store, src, gw, buildNotifier(), engCfg, slog.Default()), nil
}

func buildNotifier() service.Notifier {
	cfg := notify.SMTPConfig{
		Host:     viper.GetString("smtp.host"),
		Port:     viper.GetInt("smtp.port"),
		Username: viper.GetString("smtp.username"),
		Password: viper.GetString("smtp.password"),
		From:     viper.GetString("smtp.from"),
		To:       viper.GetStringSlice("smtp.to"),
	}
	if cfg.Configured() {
		if cfg.Port == 0 {
			cfg.Port = 587
		}
		return notify.NewSMTPNotifier(cfg, slog.Default())
	}
	return notify.NewLogNotifier(slog.Default())
}

func cycleInterval() time.Duration {
	if interval := viper.GetDuration("ingest.interval"); interval > 0 {
		return interval
	}
	return engine.DefaultCycleInterval
}
