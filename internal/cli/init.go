// Package cli provides common initialization shared by cmd/asetmon and
// cmd/asetctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"asetmon/internal/config"
	applog "asetmon/internal/log"
	"asetmon/internal/storage"
)

// SetupLogger creates the stdout logger in format at level and installs it as
// the slog default. An unknown format falls back to text.
func SetupLogger(level slog.Level, format string) *applog.Logger {
	logger, err := applog.New(os.Stdout, format, level, applog.ComponentApp)
	if err != nil {
		logger = applog.NewText(os.Stdout, level, applog.ComponentApp)
		logger.Warn("Falling back to text logs", applog.FieldError, err)
	}
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoreOptions maps configuration to repository options.
func StoreOptions(cfg *config.Config) storage.Options {
	opts := storage.Options{
		Driver:          cfg.DBDriver,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		QueryTimeout:    cfg.DBQueryTimeout,
		WriteTimeout:    cfg.DBWriteTimeout,
	}
	switch cfg.DBDriver {
	case storage.DriverMySQL:
		opts.DSN = storage.MySQLDSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	default:
		opts.SQLitePath = cfg.SQLiteDBPath
	}
	return opts
}

// OpenStore opens the repository and applies migrations.
func OpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*storage.Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	repo, err := storage.Open(ctx, StoreOptions(cfg))
	if err != nil {
		return nil, err
	}
	target := cfg.SQLiteDBPath
	if cfg.DBDriver == storage.DriverMySQL {
		target = cfg.MySQLAddr() + "/" + cfg.DBName
	}
	logger.WithComponent(applog.ComponentStorage).Info("Asset store ready",
		"driver", repo.Driver(), "target", target, "schema_version", repo.SchemaVersion())
	return repo, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before done is closed.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
