package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/meridianpay/capture/config"
	"github.com/meridianpay/capture/internal/cache"
	"github.com/meridianpay/capture/internal/capture"
	"github.com/meridianpay/capture/internal/database"
	"github.com/meridianpay/capture/pkg/logger"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capture_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// Build metadata reported by /version, overridden from main at startup.
var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// SetBuildInfo records the version and build time reported by /version.
func SetBuildInfo(v, bt string) {
	version = v
	buildTime = bt
}

// Server represents the API server
type Server struct {
	config      config.APIConfig
	db          *database.DB
	cache       *cache.RedisCache
	coordinator *capture.Coordinator
	auth        *AuthManager
	limiter     *RateLimiter
	distLimiter *DistributedRateLimiter
	log         *logger.Logger
	router      *gin.Engine
	server      *http.Server
}

// NewServer creates a new API server. The cache is optional; without it the
// read endpoints skip the cache-aside path and distributed rate limiting
// falls back to the in-process limiter.
func NewServer(
	cfg config.APIConfig,
	db *database.DB,
	redisCache *cache.RedisCache,
	coordinator *capture.Coordinator,
	log *logger.Logger,
) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100 // default rate limit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.RateLimit * 2
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:      cfg,
		db:          db,
		cache:       redisCache,
		coordinator: coordinator,
		auth:        NewAuthManager(cfg.OpsAPIKeys, cfg.JWTSecret),
		limiter:     NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		log:         log,
		router:      router,
	}
	if cfg.DistributedRateLimit && redisCache != nil {
		s.distLimiter = NewDistributedRateLimiter(redisCache, cfg.RateLimit*60)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, Idempotency-Key")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Rate limiting middleware
	if s.distLimiter != nil {
		s.router.Use(DistributedRateLimitMiddleware(s.distLimiter))
	} else {
		s.router.Use(RateLimitMiddleware(s.limiter))
	}

	// Logging middleware
	s.router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		s.log.Info("API request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"ip", c.ClientIP(),
		)

		// Record metrics against the route template so path parameters do
		// not blow up label cardinality.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		apiRequestsTotal.WithLabelValues(c.Request.Method, endpoint, fmt.Sprintf("%d", status)).Inc()
		apiRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration.Seconds())
	})

	// Timeout middleware
	s.router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.Timeout.Std())
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health check endpoints
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/health/ready", s.handleHealthReady)
	s.router.GET("/health/detailed", s.handleHealthDetailed)
	s.router.GET("/version", s.handleVersion)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Payment routes
		payments := v1.Group("/payments")
		{
			payments.POST("", s.handleCreatePayment)
			payments.POST("/quote", s.handleQuotePayment)
			payments.GET("", s.handleListPayments)
			payments.GET("/:id", s.handleGetPayment)
			payments.GET("/:id/ledger", s.handleGetPaymentLedger)
		}

		// Operational routes, credentialed
		ops := v1.Group("")
		ops.Use(RequireOps(s.auth))
		{
			ops.GET("/outbox/events", s.handleListOutboxEvents)
			ops.GET("/stats", s.handleGetStats)
		}
	}
}

// Start starts the API server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.log.Info("Starting API server", "address", addr)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping API server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles basic liveness check - always returns 200 if process is alive
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleHealthReady handles readiness check - checks if can serve traffic
func (s *Server) handleHealthReady(c *gin.Context) {
	checks := make(map[string]interface{})
	allHealthy := true

	// Check database connection
	if err := s.db.Ping(); err != nil {
		checks["database"] = gin.H{"status": "unhealthy", "message": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = gin.H{"status": "ok"}
	}

	// Check cache connection
	if s.cache != nil {
		if err := s.cache.Ping(c.Request.Context()); err != nil {
			checks["cache"] = gin.H{"status": "unhealthy", "message": err.Error()}
			allHealthy = false
		} else {
			checks["cache"] = gin.H{"status": "ok"}
		}
	} else {
		checks["cache"] = gin.H{"status": "disabled"}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status": status,
		"checks": checks,
	})
}

// handleHealthDetailed handles detailed health check with capture totals
func (s *Server) handleHealthDetailed(c *gin.Context) {
	checks := make(map[string]interface{})

	// Check database connection
	if err := s.db.Ping(); err != nil {
		checks["database"] = gin.H{"status": "unhealthy", "message": err.Error()}
	} else {
		checks["database"] = gin.H{"status": "ok"}
	}

	// Check cache connection
	if s.cache != nil {
		if err := s.cache.Ping(c.Request.Context()); err != nil {
			checks["cache"] = gin.H{"status": "unhealthy", "message": err.Error()}
		} else {
			checks["cache"] = gin.H{"status": "ok"}
		}
	} else {
		checks["cache"] = gin.H{"status": "disabled"}
	}

	stats, err := s.db.GetCaptureStats(c.Request.Context())
	if err == nil && stats != nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"checks": checks,
			"metrics": gin.H{
				"total_payments":        stats.TotalPayments,
				"pending_outbox_events": stats.PendingOutboxEvents,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": checks,
	})
}

// handleVersion handles version requests
func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    version,
		"build_time": buildTime,
		"go_version": runtime.Version(),
	})
}

// Helper functions

func parseQueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
