// Package httpapi serves the JSON API consumed by the ChronoFlow web UI.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/chronoflow/chronoflow/internal/assistant"
	"github.com/chronoflow/chronoflow/internal/auth"
	"github.com/chronoflow/chronoflow/internal/feed"
	"github.com/chronoflow/chronoflow/internal/llm"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// MaxVisibleDays bounds the columns of one schedule request.
const MaxVisibleDays = 31

// Assistant answers chat messages against a user's schedule.
type Assistant interface {
	Chat(ctx context.Context, userID, message string, history []llm.Message) (*assistant.Reply, error)
}

// Options configures a Server.
type Options struct {
	// Items should publish to Broker on writes, e.g. a feed.NotifyingRepository.
	Items     schedule.Repository
	Users     schedule.UserRepository
	Broker    *feed.Broker
	Issuer    *auth.Issuer
	Callbacks *auth.Callbacks
	Assistant Assistant
	Logger    *zap.Logger

	BotToken               string
	BotUsername            string
	LoginMaxAge            time.Duration
	CORSOrigins            []string
	AssistantRatePerMinute int
	VisibleDays            int
	Location               *time.Location

	// StreamDebounce and Heartbeat tune /schedule/stream.
	StreamDebounce time.Duration
	Heartbeat      time.Duration
	Now            func() time.Time
}

// Server provides the HTTP API.
type Server struct {
	echo      *echo.Echo
	items     schedule.Repository
	users     schedule.UserRepository
	broker    *feed.Broker
	issuer    *auth.Issuer
	callbacks *auth.Callbacks
	assistant Assistant
	limiters  *limiterSet
	logger    *zap.Logger

	botToken    string
	botUsername string
	loginMaxAge time.Duration
	visibleDays int
	loc         *time.Location
	debounce    time.Duration
	heartbeat   time.Duration
	now         func() time.Time
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Items == nil || opts.Users == nil {
		return nil, errors.New("item and user repositories are required")
	}
	if opts.Issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}

	s := &Server{
		items:       opts.Items,
		users:       opts.Users,
		broker:      opts.Broker,
		issuer:      opts.Issuer,
		callbacks:   opts.Callbacks,
		assistant:   opts.Assistant,
		limiters:    newLimiterSet(opts.AssistantRatePerMinute),
		logger:      opts.Logger,
		botToken:    opts.BotToken,
		botUsername: opts.BotUsername,
		loginMaxAge: opts.LoginMaxAge,
		visibleDays: opts.VisibleDays,
		loc:         opts.Location,
		debounce:    opts.StreamDebounce,
		heartbeat:   opts.Heartbeat,
		now:         opts.Now,
	}
	if s.broker == nil {
		s.broker = feed.NewBroker(feed.DefaultBuffer)
	}
	if s.callbacks == nil {
		s.callbacks = &auth.Callbacks{}
	}
	if s.visibleDays < 1 || s.visibleDays > MaxVisibleDays {
		s.visibleDays = 7
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.debounce <= 0 {
		s.debounce = 250 * time.Millisecond
	}
	if s.heartbeat <= 0 {
		s.heartbeat = 30 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(echo.WrapMiddleware(cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}).Handler))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	e.Use(metricsMiddleware())

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/auth/config", s.handleAuthConfig)
	v1.POST("/auth/telegram", s.handleTelegramLogin)

	api := v1.Group("", auth.RequireUser(s.issuer))
	api.GET("/me", s.handleMe)

	api.GET("/items", s.handleListItems)
	api.GET("/items/unscheduled", s.handleListUnscheduled)
	api.POST("/items", s.handleCreateItem)
	api.GET("/items/:id", s.handleGetItem)
	api.PATCH("/items/:id", s.handleUpdateItem)
	api.DELETE("/items/:id", s.handleDeleteItem)
	api.POST("/items/:id/complete", s.handleCompleteItem)

	api.GET("/schedule", s.handleSchedule)
	api.GET("/schedule/stream", s.handleScheduleStream)
	api.GET("/export.ics", s.handleExport)

	api.POST("/assistant/chat", s.handleAssistantChat)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Callbacks returns the login callback registry.
func (s *Server) Callbacks() *auth.Callbacks {
	return s.callbacks
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
