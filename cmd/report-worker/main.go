package main

import (
	"context"
	"errors"
	"time"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/cli"
	"ricorrenze/internal/log"
	"ricorrenze/internal/report"
	"ricorrenze/internal/report/google"
	"ricorrenze/internal/report/memory"
	"ricorrenze/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting report-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	var reporter report.BatchReporter
	switch cfg.ReportBackend {
	case "sheets":
		client, err := google.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets reporter", log.FieldError, err)
			return
		}
		reporter = client
		logger.Info("Google Sheets reporter initialized", "sheet", cfg.ReportSheetName)
	default:
		reporter = memory.New()
		logger.Warn("Using in-memory reporter, mirrored batches are not persisted")
	}

	w := worker.NewReportWorker(repo, reporter, cfg.ReportBatchSize)

	if err := w.StartupBackfill(ctx); err != nil {
		logger.Error("Startup backfill failed", log.FieldError, err)
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the report-worker")
		return
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return
	}
	defer amqpClient.Close()

	logger.Info("Report-worker consuming", "queue", cfg.AMQPQueue)

	err = amqpClient.ConsumeBatchCompleted(ctx, func(msg *amqp.BatchCompletedMessage) error {
		return w.HandleBatchMessage(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption stopped", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
}
