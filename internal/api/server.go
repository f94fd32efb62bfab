// Package api provides the HTTP/JSON API for Project Hunt.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/submission"
)

// HeaderCallerID carries the authenticated caller's opaque id. An upstream
// auth proxy is expected to set it.
const HeaderCallerID = "X-Caller-ID"

// Server provides HTTP endpoints for Project Hunt.
type Server struct {
	echo   *echo.Echo
	coord  *submission.Coordinator
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(coord *submission.Coordinator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if coord == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the response so the status below is final
				c.Error(err)
			}
			duration := time.Since(start)
			status := c.Response().Status

			recordRequest(c.Request().Method, c.Path(), status, duration)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:   e,
		coord:  coord,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/entries", s.handleCreateEntry)
	v1.GET("/entries", s.handleListEntries)
	v1.GET("/entries/:id", s.handleGetEntry)
	v1.PATCH("/entries/:id", s.handleEditEntry)
	v1.POST("/entries/:id/confirm", s.handleConfirmEntry)
	v1.POST("/entries/:id/cancel", s.handleCancelEntry)
	v1.POST("/entries/:id/backfill", s.handleBackfillEntry)
	v1.POST("/entries/:id/upvote", s.handleToggleUpvote)

	v1.GET("/users/:owner/entries", s.handleListByOwner)

	v1.GET("/search", s.handleSearch)
	v1.POST("/similar", s.handleSimilar)

	v1.POST("/teams", s.handleCreateTeam)
	v1.GET("/teams/:id", s.handleGetTeam)
	v1.PATCH("/teams/:id", s.handleRenameTeam)

	v1.GET("/focus-areas", s.handleListFocusAreas)
	v1.POST("/focus-areas", s.handleCreateFocusArea)
	v1.GET("/focus-areas/:id", s.handleGetFocusArea)
	v1.POST("/focus-areas/:id/archive", s.handleArchiveFocusArea)
	v1.POST("/focus-areas/:id/reactivate", s.handleReactivateFocusArea)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

func callerID(c echo.Context) string {
	return c.Request().Header.Get(HeaderCallerID)
}
