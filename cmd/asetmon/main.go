package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"asetmon/internal/amqp"
	"asetmon/internal/auth"
	"asetmon/internal/cache"
	"asetmon/internal/cli"
	"asetmon/internal/config"
	apphttp "asetmon/internal/http"
	applog "asetmon/internal/log"
	"asetmon/internal/middleware/ratelimit"
	"asetmon/internal/middleware/security"
	"asetmon/internal/services"
	"asetmon/internal/sheets"
	gsheet "asetmon/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.SlogLevel(), cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger) error {
	startCtx := context.Background()

	repo, err := cli.OpenStore(startCtx, logger, cfg)
	if err != nil {
		return fmt.Errorf("open asset store: %w", err)
	}
	defer repo.Close()

	reports := services.NewReportService(repo, cfg.ReportCacheTTL, logger)
	imports := services.NewImportService(repo, reports, logger)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reports.Cache())
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	if cfg.AMQPURL != "" {
		client, err := amqp.DialWithRetry(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, import events disabled", applog.FieldError, err)
		} else {
			defer client.Close()
			imports.WithPublisher(client)
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	var googleSheet sheets.RowSource
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(startCtx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			Range:              cfg.GoogleSheetRange,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return fmt.Errorf("init google sheets source: %w", err)
		}
		googleSheet = client
		logger.Info("Google Sheets import source enabled", applog.FieldSource, client.Name())
	}

	loginLimiter := ratelimit.NewLimiter(ratelimit.Config{Name: "login", Requests: cfg.LoginRatePerMinute, Window: time.Minute})
	defer loginLimiter.Stop()
	uploadLimiter := ratelimit.NewLimiter(ratelimit.Config{Name: "upload", Requests: cfg.UploadRatePerMinute, Window: time.Minute})
	defer uploadLimiter.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Logger:         logger,
		Auth:           auth.NewAuthenticator(repo, logger),
		Sessions:       auth.NewSessionStore(cfg.SessionMax, cfg.SessionTTL),
		Imports:        imports,
		Reports:        reports,
		Store:          repo,
		GoogleSheet:    googleSheet,
		Detector:       security.NewDetector(),
		LoginLimiter:   loginLimiter,
		UploadLimiter:  uploadLimiter,
		UploadMaxBytes: cfg.UploadMaxBytes,
		PreviewRows:    cfg.PreviewRows,
		CookieSecure:   cfg.CookieSecure,
	})
	if err != nil {
		return err
	}
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting asetmon server", "port", cfg.Port, "driver", cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
	return nil
}
