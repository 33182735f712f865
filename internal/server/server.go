// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/shieldsenior/shieldsenior/internal/config"
	"github.com/shieldsenior/shieldsenior/internal/detect"
	"github.com/shieldsenior/shieldsenior/internal/health"
	"github.com/shieldsenior/shieldsenior/internal/idgen"
	"github.com/shieldsenior/shieldsenior/internal/logging"
	"github.com/shieldsenior/shieldsenior/internal/metrics"
	"github.com/shieldsenior/shieldsenior/internal/notify"
	"github.com/shieldsenior/shieldsenior/internal/ratelimit"
	"github.com/shieldsenior/shieldsenior/internal/realtime"
	"github.com/shieldsenior/shieldsenior/internal/security"
	"github.com/shieldsenior/shieldsenior/internal/shield"
	"github.com/shieldsenior/shieldsenior/internal/textproc"
	"github.com/shieldsenior/shieldsenior/internal/validation"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	analyzer      *detect.Analyzer
	detectStore   detect.Store
	shieldService *shield.Service
	shieldStore   shield.Store
	shieldTimer   *shield.Timer
	realtimeHub   *realtime.Hub
	healthChecks  *health.Registry
	rateLimiter   *ratelimit.Limiter
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

	classifierOverride detect.Classifier // set via WithClassifier, wins over config

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClassifier sets a custom classifier (for testing)
func WithClassifier(c detect.Classifier) Option {
	return func(s *Server) {
		s.classifierOverride = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rules, err := detect.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load keyword rules: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	s.healthy.Store(true)

	// Apply options first (may set logger or classifier)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db

		detectStore := detect.NewPostgresStore(db)
		if err := detectStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate analysis store: %w", err)
		}
		s.detectStore = detectStore

		shieldStore := shield.NewPostgresStore(db)
		if err := shieldStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate shield store: %w", err)
		}
		s.shieldStore = shieldStore

		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.detectStore = detect.NewMemoryStore()
		s.shieldStore = shield.NewMemoryStore()
		s.logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
	}

	// Risk analyzer: keyword engine always, Gemini on top when a key is set
	s.analyzer = detect.NewAnalyzer(detect.NewKeywordEngine(rules), s.logger).
		WithStore(s.detectStore)
	switch {
	case s.classifierOverride != nil:
		s.analyzer.WithClassifier(s.classifierOverride)
	case cfg.AIEnabled():
		s.analyzer.WithClassifier(
			detect.NewGeminiClassifier(cfg.GeminiEndpoint, cfg.GeminiAPIKey, cfg.GeminiTimeout))
		s.logger.Info("AI classifier enabled", "endpoint", cfg.GeminiEndpoint)
	default:
		s.logger.Info("AI classifier disabled, keyword engine only")
	}

	// Realtime hub for guardian dashboards
	s.realtimeHub = realtime.NewHub(s.logger)
	s.analyzer.WithAlerter(notify.NewScamAlerter(s.realtimeHub))

	// Transaction shield with alert sinks
	s.shieldService = shield.NewService(s.shieldStore, s.logger).
		WithAlertSink(notify.NewHubSink(s.realtimeHub))
	if cfg.GuardianWebhookURL != "" {
		s.shieldService.WithAlertSink(notify.NewWebhookSink(cfg.GuardianWebhookURL, s.logger))
		s.logger.Info("guardian webhook enabled")
	}
	s.shieldTimer = shield.NewTimer(s.shieldService, s.shieldStore, s.logger)

	// Health checks
	s.healthChecks = health.NewRegistry()
	if s.db != nil {
		s.healthChecks.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}
	s.healthChecks.Register("cooling_timer", func(ctx context.Context) health.Status {
		return health.Status{Name: "cooling_timer", Healthy: true, Detail: fmt.Sprintf("running=%t", s.shieldTimer.Running())}
	})

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// maskDSN hides credentials in a connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	s.router.Use(security.CORSMiddleware(s.cfg.Origins()))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.Config{RequestsPerMinute: s.cfg.RateLimitRPM})
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Honor an existing request ID from a load balancer
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = "req_" + idgen.Hex(8)
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket feed for guardian dashboards
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	detect.NewHandler(s.analyzer, s.detectStore).RegisterRoutes(v1)
	shield.NewHandler(s.shieldService).RegisterRoutes(v1)

	// One-shot: analyze transcript + evaluate transaction together
	v1.POST("/shield", s.fullShieldCheck)
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "ShieldSenior",
		"description": "Scam call detection and transaction shield for senior citizens",
		"version":     "0.1.0",
		"ai_enabled":  s.analyzer.AIEnabled(),
	})
}

// -----------------------------------------------------------------------------
// Combined flow
// -----------------------------------------------------------------------------

// FullShieldRequest is the body for POST /v1/shield.
type FullShieldRequest struct {
	Transcript          string  `json:"transcript"`
	Amount              float64 `json:"amount"`
	CallDurationSeconds int     `json:"call_duration"`
	TransactionID       string  `json:"transaction_id"`
}

// FullShieldResponse bundles analysis and shield decision. TransactionShield
// is null when no positive amount was given.
type FullShieldResponse struct {
	ScamAnalysis      detect.Result         `json:"scam_analysis"`
	CallDurationRisk  textproc.DurationRisk `json:"call_duration_risk"`
	TransactionShield *shield.Decision      `json:"transaction_shield"`
}

// fullShieldCheck handles POST /v1/shield
func (s *Server) fullShieldCheck(c *gin.Context) {
	var req FullShieldRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Transcript == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Missing 'transcript' field in request body",
		})
		return
	}

	if req.TransactionID == "" {
		req.TransactionID = idgen.TransactionToken()
	} else if !validation.IsValidTransactionID(req.TransactionID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid transaction_id format",
		})
		return
	}

	result := s.analyzer.Analyze(c.Request.Context(),
		validation.SanitizeTranscript(req.Transcript))

	resp := FullShieldResponse{
		ScamAnalysis:     result,
		CallDurationRisk: textproc.CallDurationRisk(req.CallDurationSeconds),
	}

	// Zero or negative amounts mean no transaction is in flight
	if req.Amount > 0 {
		decision, err := s.shieldService.Evaluate(c.Request.Context(),
			req.TransactionID, req.Amount, result.RiskScore, req.CallDurationSeconds)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
			return
		}
		resp.TransactionShield = decision
	}

	c.JSON(http.StatusOK, resp)
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthChecks.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
			"ai_enabled", s.analyzer.AIEnabled(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start cooling-expiry sweep timer
	go s.shieldTimer.Start(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, timer)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.shieldTimer != nil {
		s.shieldTimer.Stop()
		s.logger.Info("cooling timer stopped")
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
