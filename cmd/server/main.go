// Package main runs the checkout HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coursehub/checkout/config"
	"github.com/coursehub/checkout/internal/auth"
	"github.com/coursehub/checkout/internal/courses"
	"github.com/coursehub/checkout/internal/enrollments"
	"github.com/coursehub/checkout/internal/gateway"
	"github.com/coursehub/checkout/internal/middleware"
	"github.com/coursehub/checkout/internal/notifications"
	"github.com/coursehub/checkout/internal/orders"
	"github.com/coursehub/checkout/internal/payments"
	"github.com/coursehub/checkout/internal/refunds"
	"github.com/coursehub/checkout/internal/webhooks"
	"github.com/coursehub/checkout/pkg/database"
	"github.com/coursehub/checkout/pkg/queue"
	"github.com/coursehub/checkout/pkg/redis"
	"github.com/coursehub/checkout/pkg/response"
	"github.com/coursehub/checkout/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	if cfg.Database.RunMigrations {
		if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	tx := database.NewTransactor(pool)

	// Confirmation e-mails are optional: without Redis the reconciler skips them.
	var notifier payments.Notifier
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, order e-mails disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		notifier = notifications.NewNotifier(queue.NewQueue(rdb.Client, logger), logger)
	}

	var archive webhooks.Archiver
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
			Bucket:          cfg.AWS.ArchiveBucket,
		}, logger)
		if err != nil {
			logger.Warn("webhook archive disabled", zap.Error(err))
		} else {
			archive = s3Client
		}
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		ShopID:    cfg.Gateway.ShopID,
		SecretKey: cfg.Gateway.SecretKey,
		Timeout:   cfg.Gateway.Timeout,
	}, nil, logger)
	if cfg.Gateway.WebhookSecret == "" {
		logger.Warn("GATEWAY_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	courseRepo := courses.NewRepository(pool)
	orderRepo := orders.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)
	refundRepo := refunds.NewRepository(pool)
	enrollmentRepo := enrollments.NewRepository(pool)
	webhookRepo := webhooks.NewRepository(pool)

	granter := enrollments.NewGranter(enrollmentRepo, logger)
	reconciler := payments.NewReconciler(paymentRepo, orderRepo, granter, tx, notifier, logger)

	orderService := orders.NewService(orderRepo, courseRepo, tx, cfg.Gateway.Currency, logger)
	paymentService := payments.NewService(paymentRepo, orderRepo, tx, gw, reconciler, cfg.Gateway.DefaultReturnURL, logger)
	refundService := refunds.NewService(refundRepo, paymentRepo, orderRepo, tx, gw, logger)

	orderHandler := orders.NewHandler(orderService, logger)
	paymentHandler := payments.NewHandler(paymentService, logger)
	refundHandler := refunds.NewHandler(refundService, logger)
	enrollmentHandler := enrollments.NewHandler(enrollmentRepo, logger)
	emailHandler := notifications.NewHandler(notifications.NewRepository(pool), logger)
	webhookHandler := webhooks.NewHandler(
		gateway.NewVerifier(cfg.Gateway.WebhookSecret),
		cfg.Gateway.SignatureHeader,
		reconciler,
		refundService,
		webhookRepo,
		archive,
		logger,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("health check: database unreachable", zap.Error(err))
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Gateway notifications (no JWT; HMAC signature checked in handler)
	router.POST("/payments/webhook", webhookHandler.Receive)

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/orders", orderHandler.Create)
		api.GET("/orders", orderHandler.List)
		api.GET("/orders/:id", orderHandler.Get)

		api.POST("/payments/create", paymentHandler.Create)
		api.GET("/payments/:id", paymentHandler.Get)
		api.POST("/payments/:id/cancel", paymentHandler.Cancel)

		api.GET("/enrollments", enrollmentHandler.List)
		api.PUT("/enrollments/:id/progress", enrollmentHandler.UpdateProgress)

		// Refunds (admin only)
		api.POST("/refunds", middleware.RequireRole(auth.RoleAdmin), refundHandler.Create)
		api.GET("/refunds", middleware.RequireRole(auth.RoleAdmin), refundHandler.List)
		api.GET("/refunds/:id", middleware.RequireRole(auth.RoleAdmin), refundHandler.Get)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/webhook-events", webhookHandler.List)
		admin.POST("/webhook-events/:id/replay", webhookHandler.Replay)
		admin.GET("/orders/:id/emails", emailHandler.ListByOrder)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
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
