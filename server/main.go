package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ferrylink/api/routes"
	"ferrylink/internal/payments"
	"ferrylink/internal/shared/config"
	"ferrylink/internal/shared/database"
	"ferrylink/internal/tickets"
	"ferrylink/internal/webhookqueue"
	"ferrylink/pkg/logger"
	"ferrylink/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title FerryLink Payment Webhook API
// @version 1.0
// @description Reconciles payment gateway notifications into payments, bookings, seats and tickets.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// Re-create after the mode is known so the handler format matches
	appLogger = logger.New()
	logger.SetDefault(appLogger)

	if cfg.Webhook.ServerKey == "" {
		appLogger.Warn("MIDTRANS_SERVER_KEY is empty; every notification will fail signature verification")
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("Failed to initialize databases", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis != nil {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedis(), &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			WebhookRequests: cfg.RateLimit.WebhookRequests,
			AdminRequests:   cfg.RateLimit.AdminRequests,
			HealthRequests:  cfg.RateLimit.HealthRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("webhook_requests", cfg.RateLimit.WebhookRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	publisher, consumer, err := setupQueue(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize webhook queue", slog.Any("error", err))
		os.Exit(1)
	}

	// A nil publisher must stay a nil interface for the controller's synchronous check
	var enqueuer payments.Enqueuer
	if publisher != nil {
		enqueuer = publisher
		defer publisher.Close()
	}

	appRouter, err := routes.NewRouter(cfg, db, enqueuer, rateLimiter, appLogger)
	if err != nil {
		appLogger.Error("Failed to build router", slog.Any("error", err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        setupEngine(appRouter, appLogger),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", Version),
			slog.String("queue_mode", cfg.Queue.Mode),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("ip_check", cfg.Webhook.IPCheckEnabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	repairJob := tickets.NewRepairJob(appRouter.Issuer(), &tickets.JobConfig{
		Interval:  cfg.Tickets.RepairInterval,
		BatchSize: cfg.Tickets.RepairBatch,
	}, appLogger)
	g.Go(func() error {
		return repairJob.Run(ctx)
	})

	if consumer != nil {
		handler := webhookqueue.Handler(payments.QueueHandler(appRouter.Processor()))
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(ctx, cfg.Queue.Workers, handler)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server stopped with error", slog.Any("error", err))
	}
	appLogger.Info("Server exited gracefully")
}

// setupQueue returns nil, nil in synchronous mode
func setupQueue(cfg *config.Config, log *logger.Logger) (webhookqueue.Publisher, webhookqueue.Consumer, error) {
	switch cfg.Queue.Mode {
	case config.QueueModeKafka:
		kafkaConfig := webhookqueue.DefaultKafkaConfig()
		kafkaConfig.Brokers = cfg.Queue.KafkaBrokers
		kafkaConfig.Topic = cfg.Queue.KafkaTopic
		kafkaConfig.GroupID = cfg.Queue.KafkaGroupID

		publisher, err := webhookqueue.NewKafkaPublisher(kafkaConfig, log)
		if err != nil {
			return nil, nil, err
		}
		consumer, err := webhookqueue.NewKafkaConsumer(kafkaConfig, log)
		if err != nil {
			publisher.Close()
			return nil, nil, err
		}
		log.Info("Webhook queue mode: kafka", "topic", kafkaConfig.Topic, "group", kafkaConfig.GroupID)
		return publisher, consumer, nil

	case config.QueueModeRabbitMQ:
		queue, err := webhookqueue.NewRabbitMQQueue(&webhookqueue.RabbitMQConfig{
			URL:      cfg.Queue.AMQPURL,
			Exchange: cfg.Queue.AMQPExchange,
			Queue:    cfg.Queue.AMQPQueue,
			Retry:    webhookqueue.DefaultRetryPolicy(),
		}, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Webhook queue mode: rabbitmq", "exchange", cfg.Queue.AMQPExchange, "queue", cfg.Queue.AMQPQueue)
		return queue, queue, nil

	case config.QueueModeSync, "":
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown WEBHOOK_QUEUE_MODE %q", cfg.Queue.Mode)
}

func setupEngine(appRouter *routes.Router, appLogger *logger.Logger) *gin.Engine {
	engine := gin.New()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	appRouter.SetupRoutes(engine)
	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
