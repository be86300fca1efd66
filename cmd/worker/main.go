// Package main runs the background workers: confirmation e-mails and the stale payment sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coursehub/checkout/config"
	"github.com/coursehub/checkout/internal/enrollments"
	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/notifications"
	"github.com/coursehub/checkout/internal/orders"
	"github.com/coursehub/checkout/internal/payments"
	"github.com/coursehub/checkout/internal/worker"
	"github.com/coursehub/checkout/pkg/database"
	"github.com/coursehub/checkout/pkg/mailer"
	"github.com/coursehub/checkout/pkg/queue"
	"github.com/coursehub/checkout/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	smtp := mailer.NewSMTP(mailer.SMTPConfig{
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		User:        cfg.Email.SMTPUser,
		Pass:        cfg.Email.SMTPPass,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
	}, logger)
	processor := worker.NewNotificationProcessor(jobQueue, smtp, notifications.NewRepository(pool), logger)

	paymentRepo := payments.NewRepository(pool)
	reconciler := payments.NewReconciler(
		paymentRepo,
		orders.NewRepository(pool),
		enrollments.NewGranter(enrollments.NewRepository(pool), logger),
		database.NewTransactor(pool),
		notifications.NewNotifier(jobQueue, logger),
		logger,
	)
	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		ShopID:    cfg.Gateway.ShopID,
		SecretKey: cfg.Gateway.SecretKey,
		Timeout:   cfg.Gateway.Timeout,
	}, nil, logger)
	sweeper := worker.NewPaymentSweeper(paymentRepo, gw, reconciler, worker.SweeperConfig{
		Interval:   cfg.Sweep.Interval,
		StaleAfter: cfg.Sweep.StaleAfter,
		BatchSize:  cfg.Sweep.BatchSize,
	}, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); processor.Run(workerCtx) }()
	go func() { defer wg.Done(); sweeper.Run(workerCtx) }()
	logger.Info("worker started",
		zap.Duration("sweep_interval", cfg.Sweep.Interval),
		zap.Duration("sweep_stale_after", cfg.Sweep.StaleAfter))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		config.Level = lvl
	}
	logger, _ := config.Build()
	return logger
}
