// Package server exposes the scanner over a JSON HTTP API.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mikepage/dns-monitor/internal/config"
	"github.com/mikepage/dns-monitor/internal/history"
	"github.com/mikepage/dns-monitor/internal/scanner"
)

// Server is the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      *Config
	scanner     *scanner.Scanner
	history     *history.Store
	log         *logrus.Logger
	rateLimiter *rateLimiter
}

// Config holds server configuration
type Config struct {
	Port           int
	Host           string
	APIKey         string // Optional API key protecting the scan endpoints
	AllowedOrigins []string
	Debug          bool
	ScanConfig     *config.Config
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:           8880,
		Host:           "127.0.0.1", // Localhost only by default
		AllowedOrigins: []string{"http://localhost:8880", "http://127.0.0.1:8880"},
		Debug:          false,
		ScanConfig:     config.DefaultConfig(),
	}
}

// New creates a new server instance. hist may be nil when persistence is
// disabled.
func New(cfg *Config, sc *scanner.Scanner, hist *history.Store, log *logrus.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.New()
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:      gin.New(),
		config:      cfg,
		scanner:     sc,
		history:     hist,
		log:         log,
		rateLimiter: newRateLimiter(100, time.Minute),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// GenerateAPIKey returns a random 32-byte hex API key.
func GenerateAPIKey() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// setupMiddleware configures security and logging middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(s.securityHeaders())

	corsConfig := cors.Config{
		AllowOrigins:  s.config.AllowedOrigins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-API-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	s.router.Use(cors.New(corsConfig))

	s.router.Use(s.rateLimitMiddleware())
}

// setupRoutes registers the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	if s.config.APIKey != "" {
		api.Use(s.apiKeyAuth())
	}
	api.GET("/scan", s.handleScan)
	api.GET("/history", s.handleHistory)
	api.GET("/version", s.getVersion)
}

// securityHeaders adds security headers to all responses
func (s *Server) securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// requestLogger logs requests in a structured format
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/health" || path == "/favicon.ico" {
			return
		}

		s.log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    path,
			"ip":      c.ClientIP(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

// apiKeyAuth rejects requests without the configured API key, accepted in
// the X-API-Key header or the api_key query parameter.
func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}
		if key != s.config.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid or missing API key",
			})
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware enforces the per-IP request budget.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Router exposes the underlying gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
