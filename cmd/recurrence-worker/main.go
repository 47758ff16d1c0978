package main

import (
	"context"
	"time"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/cli"
	"ricorrenze/internal/log"
	"ricorrenze/internal/scheduler"
	"ricorrenze/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentPlanner)

	logger.Info("Starting recurrence-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Batch notifications are optional; without AMQP the batches are
	// still persisted and the report worker backfills them later.
	var notifier services.BatchNotifier
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			notifier = amqpClient
			logger.Info("AMQP client initialized")
		}
	} else {
		logger.Info("AMQP disabled, batch notifications will not be published")
	}

	planner := services.NewPlannerService(repo, notifier)

	sched := scheduler.New(planner, cfg.CronSpec, cfg.RunTimeout)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		sched.Stop()
	})

	// Catch up immediately on startup; the per-date run lock makes this
	// safe alongside the scheduled tick.
	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	logger.Info("Running initial planner pass")
	if batch, err := planner.Run(runCtx, time.Now().UTC()); err != nil {
		logger.Error("Initial planner pass failed", log.FieldError, err)
	} else if batch != nil {
		logger.Info("Initial planner pass complete",
			log.FieldBatchID, batch.ID,
			log.FieldCreatedCount, batch.CreatedCount)
	}
	cancel()

	if err := sched.Start(); err != nil {
		logger.Error("Failed to start scheduler", log.FieldError, err)
		return
	}

	logger.Info("Recurrence-worker running",
		"cron_spec", cfg.CronSpec,
		"sqlite_db", cfg.SQLiteDBPath)

	cli.WaitForShutdown(ctx, done)
}
