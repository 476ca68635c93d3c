package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/er-ddx-review-server/internal/domain"
	"github.com/er-ddx-review-server/internal/ledger"
	"github.com/er-ddx-review-server/internal/middleware"
	"github.com/er-ddx-review-server/internal/service"
	"github.com/er-ddx-review-server/internal/session"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Server represents the HTTP review server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	datasets      *service.DatasetService
	store         ledger.Store
	state         *session.State
	uploads       *middleware.RateLimiter

	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, datasets *service.DatasetService, store ledger.Store, state *session.State) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())

	server := &Server{
		configManager: configManager,
		logger:        logger,
		datasets:      datasets,
		store:         store,
		state:         state,
		uploads:       middleware.NewRateLimiter(cfg.Upload.RateLimit, cfg.Upload.Burst),
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	cfg := s.configManager.GetConfig()

	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/dataset",
			middleware.RateLimit(s.uploads),
			middleware.RequestTimeout(cfg.Server.WriteTimeout),
			s.handleUpload)
		v1.GET("/dataset", s.handleGetDataset)

		v1.GET("/records", s.handleListRecords)
		v1.GET("/records/:row", s.handleGetRecord)
		v1.GET("/records/:row/quick", s.handleQuickBrowse)

		v1.GET("/session", s.handleGetSession)
		v1.POST("/session/select", s.handleSelect)
		v1.POST("/session/prev", s.handleStep(-1))
		v1.POST("/session/next", s.handleStep(1))
		v1.PUT("/session/draft", s.handleSetDraft)
		v1.POST("/session/toggle-ddx", s.handleToggleDDX)
		v1.PUT("/session/reviewer", s.handleSetReviewer)

		v1.POST("/evaluations", s.handleSaveEvaluation)
		v1.GET("/evaluations", s.handleListEvaluations)
		v1.GET("/evaluations/unreviewed", s.handleUnreviewed)

		v1.GET("/export/records.csv", s.handleExportRecords)
		v1.GET("/export/evaluations.csv", s.handleExportEvaluationsCSV)
		v1.GET("/export/evaluations.json", s.handleExportEvaluationsJSON)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	}
	if ds, err := s.datasets.Current(); err == nil {
		status["dataset"] = ds.ID()
	}
	c.JSON(http.StatusOK, status)
}

// respondError writes err as {"error": ServiceError} with a status derived
// from its code.
func (s *Server) respondError(c *gin.Context, err error) {
	var se *domain.ServiceError
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &se):
		copied := *se
		se = &copied
	case errors.As(err, &ve):
		se = domain.NewServiceError(domain.ErrValidation, ve.Message, ve.Error())
	default:
		se = domain.NewServiceError(domain.ErrInternalServer, "Internal server error", "")
	}
	se.RequestID = c.GetString(middleware.CorrelationIDKey)

	status := statusFor(se.Code)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", se.RequestID).Error("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": se})
}

func statusFor(code string) int {
	switch code {
	case domain.ErrInvalidInput, domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrUploadParse:
		return http.StatusUnprocessableEntity
	case domain.ErrNoDataset, domain.ErrRowNotFound:
		return http.StatusNotFound
	case domain.ErrRateLimit:
		return http.StatusTooManyRequests
	case domain.ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, "+middleware.CorrelationIDHeader)
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, "+middleware.CorrelationIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
