package main

import (
	"context"
	"errors"
	"os"
	"time"

	"familyledger/internal/amqp"
	"familyledger/internal/backend"
	"familyledger/internal/cli"
	"familyledger/internal/log"
	gsheet "familyledger/internal/sheets/google"
	"familyledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.MustLoadConfig(log.ComponentWorker)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.InfoContext(ctx, "Starting ledger-worker")

	if cfg.DataBackend != backend.SQLiteBackend.String() {
		logger.ErrorContext(ctx, "The worker needs the sqlite backend to share records with the server", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.ErrorContext(ctx, "AMQP_URL is required for the worker")
		os.Exit(1)
	}

	// The worker only consumes, so the store is opened without a publisher.
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backend.Config{
		Type:         backend.SQLiteBackend,
		SQLiteDBPath: cfg.SQLiteDBPath,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer result.Cleanup()

	if !cfg.MirrorEnabled() {
		logger.InfoContext(ctx, "Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, nothing to sync")
		<-ctx.Done()
		return
	}

	mirror, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		SummaryBase:     cfg.GoogleSummarySheet,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.InfoContext(ctx, "Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(result.Store, mirror, result.Services.Reports, cfg.SummaryDebounce, cfg.SyncBatchSize)
	defer syncWorker.Close()

	logger.InfoContext(ctx, "Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed startup sync check", log.FieldError, err.Error())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := amqpClient.ConsumeChanges(ctx, syncWorker.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorContext(ctx, "Message consumption failed", log.FieldError, err.Error())
			cancel()
		}
	}()

	// Periodic sweep for messages lost while the broker was unreachable.
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(context.Background(), "Worker shutdown complete")
			return
		case <-ticker.C:
			if err := syncWorker.StartupSyncCheck(ctx); err != nil {
				logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err.Error())
			}
		}
	}
}
