// Package server exposes the scheduler over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/slotsense/ai/agents/scheduler"
	"github.com/hrygo/slotsense/ai/metrics"
	"github.com/hrygo/slotsense/internal/profile"
	"github.com/hrygo/slotsense/server/service/schedule"
)

const (
	defaultMaxConcurrent = 64
	shutdownTimeout      = 10 * time.Second
	maxRequestBody       = "64K"
)

// Resolver handles one conversational turn.
type Resolver interface {
	Resolve(ctx context.Context, req scheduler.ResolveRequest) (*scheduler.Decision, error)
}

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	resolver   Resolver
	exporter   *metrics.PrometheusExporter
	// resolveSemaphore bounds the number of turns handled at once.
	resolveSemaphore *semaphore.Weighted
}

// ErrorBody is the JSON shape of a failed resolve.
type ErrorBody struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	Field          string `json:"field,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

func NewServer(profile *profile.Profile, resolver Resolver, exporter *metrics.PrometheusExporter) *Server {
	limit := profile.MaxConcurrent
	if limit <= 0 {
		limit = defaultMaxConcurrent
	}
	s := &Server{
		Profile:          profile,
		echoServer:       echo.New(),
		resolver:         resolver,
		exporter:         exporter,
		resolveSemaphore: semaphore.NewWeighted(int64(limit)),
	}
	s.echoServer.HideBanner = true
	s.echoServer.HidePort = true
	s.echoServer.Use(middleware.Recover())

	// promhttp negotiates its own compression.
	s.echoServer.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	s.echoServer.GET("/healthz", s.healthz)
	s.echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	apiGroup := s.echoServer.Group("/api/v1", middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}), middleware.BodyLimit(maxRequestBody))
	apiGroup.POST("/resolve", s.resolve)
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echoServer.Start(address)
	}()
	slog.Info("http server started", "address", address)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "failed to start http server")
	case <-ctx.Done():
		s.Shutdown(context.Background())
		return nil
	}
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", "error", err)
	}
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}

func (s *Server) resolve(c echo.Context) error {
	var req scheduler.ResolveRequest
	if err := c.Bind(&req); err != nil {
		slog.Debug("malformed resolve request", "error", err)
		status, body := ErrorResponse(&schedule.ValidationError{Field: "body", Reason: "must be a JSON object with a query"})
		return c.JSON(status, body)
	}

	if !s.resolveSemaphore.TryAcquire(1) {
		s.exporter.RecordRejected()
		return c.JSON(http.StatusTooManyRequests, ErrorBody{
			Error:          "too_many_requests",
			Message:        "Too many requests are being handled right now. Please try again shortly.",
			ConversationID: req.ConversationID,
		})
	}
	defer s.resolveSemaphore.Release(1)
	done := s.exporter.IncInFlight()
	defer done()

	decision, err := s.resolver.Resolve(c.Request().Context(), req)
	if err != nil {
		status, body := ErrorResponse(err)
		if status >= http.StatusInternalServerError {
			slog.Error("resolve failed", "conversation_id", body.ConversationID, "error", err)
		}
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, decision)
}

// ErrorResponse maps a resolve failure to its HTTP status code and body.
func ErrorResponse(err error) (int, ErrorBody) {
	body := ErrorBody{Error: "internal", Message: "Something went wrong while handling your request. Please try again."}
	var resolveErr *scheduler.Error
	if errors.As(err, &resolveErr) {
		body.ConversationID = resolveErr.ConversationID
	}
	var userErr interface{ UserMessage() string }
	if errors.As(err, &userErr) {
		body.Message = userErr.UserMessage()
	}

	var validation *schedule.ValidationError
	var upstream *schedule.UpstreamError
	switch {
	case errors.As(err, &validation):
		body.Error = "invalid_argument"
		body.Field = validation.Field
		return http.StatusBadRequest, body
	case errors.As(err, &upstream) && upstream.Timeout:
		body.Error = "upstream_timeout"
		return http.StatusGatewayTimeout, body
	case errors.As(err, &upstream):
		body.Error = "upstream_unavailable"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		body.Error = "cancelled"
		return http.StatusServiceUnavailable, body
	}
	return http.StatusInternalServerError, body
}
