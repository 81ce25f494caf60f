package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/coordinator"
	"github.com/nfrund/huddle/internal/handlers"
	"github.com/nfrund/huddle/internal/middleware"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/websocket"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E          *echo.Echo
	Cfg        config.Provider
	coord      *coordinator.Coordinator
	subscriber pubsub.Subscriber
	logger     *slog.Logger
}

// New creates a new Server instance with middleware and routes in place.
func New(cfg config.Provider, coord *coordinator.Coordinator, subscriber pubsub.Subscriber) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	setupErrorHandling(e)

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			middleware.FromContext(c.Request().Context()).Info("Request handled",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	// Configure and use session middleware
	store := sessions.NewCookieStore([]byte(cfg.GetSessionSecret()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.GetTokenTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))

	s := &Server{
		E:          e,
		Cfg:        cfg,
		coord:      coord,
		subscriber: subscriber,
		logger:     slog.Default().With("service", "server"),
	}
	s.RegisterRoutes()
	return s
}

// StartWorkers starts the activity log and the message router. Both stop
// when ctx is done.
func (s *Server) StartWorkers(ctx context.Context) error {
	if err := subscribeActivityLog(ctx, s.subscriber, s.logger); err != nil {
		return fmt.Errorf("subscribe activity log: %w", err)
	}
	go func() {
		if err := s.coord.RunRouter(ctx); err != nil {
			s.logger.Error("Message router stopped", "error", err)
		}
	}()
	return nil
}

// Run starts the workers and serves HTTP until the listener is closed.
func (s *Server) Run(ctx context.Context) error {
	if err := s.StartWorkers(ctx); err != nil {
		return err
	}
	s.logger.Info("Listening", "addr", s.Cfg.GetAddr())
	if err := s.E.Start(s.Cfg.GetAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and releases every live socket.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.E.Shutdown(ctx)
	if cerr := s.coord.Shutdown(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// socketConfig derives the websocket settings from the app config.
func socketConfig(cfg config.Provider) websocket.Config {
	return websocket.Config{
		SendBuffer:     cfg.GetSendBuffer(),
		OriginPatterns: cfg.GetAllowedOrigins(),
	}
}
