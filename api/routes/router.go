// api/routes/router.go
package routes

import (
	"fmt"
	"net/http"
	"time"

	_ "ferrylink/docs"
	"ferrylink/internal/audit"
	"ferrylink/internal/bookings"
	"ferrylink/internal/payments"
	"ferrylink/internal/shared/config"
	"ferrylink/internal/shared/database"
	"ferrylink/internal/shared/middleware"
	"ferrylink/internal/shared/txn"
	"ferrylink/internal/tickets"
	"ferrylink/internal/webhooklock"
	"ferrylink/pkg/cache"
	"ferrylink/pkg/logger"
	"ferrylink/pkg/netguard"
	"ferrylink/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config      *config.Config
	db          *database.DB
	log         *logger.Logger
	rateLimiter *ratelimit.RateLimiter
	allowlist   *netguard.Allowlist

	bookingController *bookings.Controller
	ticketController  *tickets.Controller
	paymentController *payments.Controller

	processor payments.Processor
	issuer    tickets.Issuer
}

// NewRouter wires repositories, services and controllers. queue is nil in synchronous mode
// and rateLimiter is nil when Redis is unavailable.
func NewRouter(cfg *config.Config, db *database.DB, queue payments.Enqueuer, rateLimiter *ratelimit.RateLimiter, log *logger.Logger) (*Router, error) {
	if log == nil {
		log = logger.GetDefault()
	}

	allowlist, err := netguard.Parse(cfg.Webhook.AllowedCIDRs)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook allowlist: %w", err)
	}
	if cfg.Webhook.IPCheckEnabled && allowlist.Len() == 0 {
		log.Warn("Webhook IP check is enabled with an empty allowlist; every notification will be rejected")
	}

	r := &Router{
		config:      cfg,
		db:          db,
		log:         log,
		rateLimiter: rateLimiter,
		allowlist:   allowlist,
	}

	pg := db.GetPostgreSQL()
	transactor := txn.NewTransactor(pg)

	var cacheService cache.Service
	var locker webhooklock.Locker
	if db.Redis != nil {
		cacheService = cache.NewService(db.Redis)
		locker = webhooklock.NewRedisLocker(db.Redis, cfg.Webhook.LockTTL, log)
	} else {
		log.Warn("Using in-process webhook lock; run a single instance")
		locker = webhooklock.NewMemoryLocker(cfg.Webhook.LockTTL)
	}

	// Bookings
	bookingRepo := bookings.NewRepository(pg)
	bookingService := bookings.NewService(bookingRepo, cacheService, cfg.Redis.BookingCacheTTL)
	r.bookingController = bookings.NewController(bookingService)

	// Tickets
	ticketRepo := tickets.NewRepository(pg)
	r.issuer = tickets.NewIssuer(
		transactor,
		ticketRepo,
		bookingRepo,
		tickets.NewCodeGenerator(cfg.Tickets.CodePrefix),
		cacheService,
		bookingService,
		log,
		tickets.Options{CodeAttempts: cfg.Tickets.CodeAttempts},
	)
	r.ticketController = tickets.NewController(r.issuer)

	// Payments
	paymentRepo := payments.NewRepository(pg)
	recorder := audit.NewService(audit.NewRepository(pg), log)
	reconciler := payments.NewReconciler(transactor, paymentRepo, bookingRepo, ticketRepo)
	r.processor = payments.NewProcessor(
		paymentRepo,
		reconciler,
		locker,
		recorder,
		r.issuer,
		bookingService,
		log,
		payments.ProcessorOptions{ReconcileTimeout: cfg.Webhook.ReconcileTimeout},
	)
	r.paymentController = payments.NewController(r.processor, cfg.Webhook.ServerKey, queue, log)

	return r, nil
}

// Processor is shared with the queue workers
func (r *Router) Processor() payments.Processor {
	return r.processor
}

// Issuer is shared with the ticket repair job
func (r *Router) Issuer() tickets.Issuer {
	return r.issuer
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group(r.config.GetAPIBasePath())
	{
		admin := api.Group("/admin", middleware.AdminOnly(r.config)...)
		if r.rateLimiter != nil {
			admin.Use(ratelimit.MiddlewareFor(r.rateLimiter, ratelimit.RateLimitTypeAdmin))
		}

		public := api.Group("")
		if r.rateLimiter != nil {
			public.Use(ratelimit.MiddlewareFor(r.rateLimiter, ratelimit.RateLimitTypeDefault))
		}

		bookings.SetupBookingRoutes(public, r.bookingController)
		tickets.SetupTicketRoutes(public, admin, r.ticketController)
		payments.SetupPaymentRoutes(api, admin, r.paymentController, r.webhookGuards()...)
	}
}

// webhookGuards run before signature verification: source address first, then rate
func (r *Router) webhookGuards() []gin.HandlerFunc {
	guards := []gin.HandlerFunc{netguard.Middleware(r.allowlist, r.config.Webhook.IPCheckEnabled)}
	if r.rateLimiter != nil {
		guards = append(guards, ratelimit.MiddlewareFor(r.rateLimiter, ratelimit.RateLimitTypeWebhook))
	}
	return guards
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("")
	if r.rateLimiter != nil {
		health.Use(ratelimit.MiddlewareFor(r.rateLimiter, ratelimit.RateLimitTypeHealth))
	}

	health.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"timestamp":  time.Now(),
			"service":    "ferrylink-webhook",
			"queue_mode": r.config.Queue.Mode,
			"async":      r.config.IsAsyncQueue(),
			"redis":      r.db.Redis != nil,
		}

		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}

		body["status"] = "healthy"
		c.JSON(http.StatusOK, body)
	})

	health.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}
