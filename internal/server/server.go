// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/internal/mindloop"
	"github.com/mohammad-safakhou/mindloop/internal/seed"
	"github.com/mohammad-safakhou/mindloop/models"
	"github.com/mohammad-safakhou/mindloop/provider/openrouter"
)

// SeedFunc turns a URL into a topic.
type SeedFunc func(ctx context.Context, url string) (string, error)

type Server struct {
	Echo *echo.Echo

	orch    *mindloop.Orchestrator
	bus     *events.Broadcaster
	logger  *zap.Logger
	seed    SeedFunc
	metrics http.Handler
}

// Deps are the collaborators the HTTP layer needs. Metrics and Seed are
// optional.
type Deps struct {
	Orch    *mindloop.Orchestrator
	Bus     *events.Broadcaster
	Logger  *zap.Logger
	Metrics http.Handler
	Seed    SeedFunc
}

func New(cfg config.ServerConfig, d Deps) (*Server, error) {
	if d.Orch == nil || d.Bus == nil {
		return nil, errors.New("server: orchestrator and event bus are required")
	}
	s := &Server{
		Echo:    echo.New(),
		orch:    d.Orch,
		bus:     d.Bus,
		logger:  d.Logger,
		seed:    d.Seed,
		metrics: d.Metrics,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.seed == nil {
		s.seed = seed.FromURL
	}

	e := s.Echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	api := e.Group("/api")
	if cfg.JWTSecret != "" {
		auth := &AuthHandler{Secret: []byte(cfg.JWTSecret), PasswordHash: cfg.AdminPasswordHash, TTL: cfg.TokenTTL}
		auth.Register(api.Group("/auth"))
		api.Use(authMiddleware(auth.Secret, "/api/auth/"))
	}

	api.GET("/state", s.state)
	api.GET("/events", s.events)
	s.registerCycles(api.Group("/cycles"))
	s.registerHistory(api.Group("/history"))
	s.registerSettings(api)
	return s, nil
}

// Start serves until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

// handleError maps domain errors to status codes and writes a JSON envelope.
func (s *Server) handleError(err error, c echo.Context) {
	code, msg := statusOf(err)
	req := c.Request()
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", code), zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", code), zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
	}
	if c.Response().Committed {
		return
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, HTTPError{Error: msg})
}

func statusOf(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	var ce *openrouter.CompletionError
	switch {
	case mindloop.IsConfigurationError(err):
		return http.StatusBadRequest, err.Error()
	case mindloop.IsStateError(err):
		return http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrCycleNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &ce):
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func (s *Server) state(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Snapshot())
}
