// Package api exposes the triage engine over HTTP: scoring, retraining,
// model introspection, prediction history, and a websocket event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/cache"
	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/history"
	"github.com/telemed-priority-engine/internal/middleware"
	"github.com/telemed-priority-engine/internal/service"
)

// Version is the reported service version
const Version = "1.0.0"

// TrainingSource supplies labeled examples for retraining
type TrainingSource interface {
	FetchTrainingData(ctx context.Context) ([]domain.TrainingExample, error)
	BreakerState() string
}

// DatabaseChecker reports connection pool health when the history
// store runs on Postgres
type DatabaseChecker interface {
	Health(ctx context.Context) error
}

// Deps bundles the collaborators the server routes requests to.
// Cache and Historical are optional, nil disables them.
type Deps struct {
	Engine     *service.Engine
	History    history.Store
	Cache      *cache.PredictionCache
	Historical TrainingSource
	DB         DatabaseChecker
	Synthesize func(n int) []domain.TrainingExample
	Samples    int
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
	hub           *EventHub
	upgrader      websocket.Upgrader
	deps          Deps
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Deps, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	server := &Server{
		configManager: configManager,
		router:        router,
		logger:        logger,
		hub:           NewEventHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		},
		deps: deps,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the websocket event hub
func (s *Server) Hub() *EventHub {
	return s.hub
}

// Start starts the HTTP server and blocks until the context is cancelled
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
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	cfg := s.configManager.GetServerConfig()

	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// Websocket event stream
	s.router.GET("/ws/events", s.handleEvents)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	{
		v1.POST("/predict", s.handlePredict)
		v1.POST("/retrain", s.handleRetrain)
		v1.GET("/model/importance", s.handleImportance)
		v1.GET("/predictions", s.handleListPredictions)
		v1.GET("/predictions/export", s.handleExportPredictions)
		v1.POST("/predictions/import", s.handleImportPredictions)
		v1.DELETE("/predictions/:id", s.handleDeletePrediction)
	}
}

// handleEvents upgrades the connection and subscribes it to the hub
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	s.hub.Register(conn)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(origin)] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
