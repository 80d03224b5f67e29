package httpbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pagelens/pkg/bus"
)

const shutdownGracePeriod = 5 * time.Second

// wireResponse is the HTTP body carrying a bus response back to a client.
type wireResponse struct {
	RequestID string `json:"requestId"`
	Payload   any    `json:"payload,omitempty"`
}

type wireError struct {
	Error string `json:"error"`
}

// Server exposes a bus endpoint over HTTP so a separate process can reach
// this execution context. One POST round trip carries one request/response
// pair.
type Server struct {
	endpoint *bus.Bus
	app      *echo.Echo
	address  string
	log      *slog.Logger

	startedAt time.Time
}

// NewServer mounts the bus on an echo application bound to addr.
func NewServer(endpoint *bus.Bus, address string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "httpbus.server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("Request served",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	}))

	s := &Server{
		endpoint: endpoint,
		app:      e,
		address:  address,
		log:      log,
	}

	e.POST("/bus", s.handleMessage)
	e.GET("/healthz", s.handleHealth)

	return s
}

func (s *Server) handleMessage(c echo.Context) error {
	var msg bus.Message
	if err := c.Bind(&msg); err != nil {
		return c.JSON(http.StatusBadRequest, wireError{Error: "invalid message envelope"})
	}
	if msg.Action == "" || msg.RequestID == "" {
		return c.JSON(http.StatusBadRequest, wireError{Error: "action and requestId are required"})
	}

	payload, err := s.endpoint.Dispatch(c.Request().Context(), msg)
	if err != nil {
		// Dispatch fails only for transport-level conditions such as a
		// missing handler; handler failures already arrive as payloads.
		return c.JSON(http.StatusBadGateway, wireError{Error: err.Error()})
	}

	resp := wireResponse{RequestID: msg.RequestID}
	if len(payload) > 0 {
		resp.Payload = json.RawMessage(payload)
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c echo.Context) error {
	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": uptime,
	})
}

// Handler exposes the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.startedAt = time.Now().UTC()

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("start bus server: %w", err)
		}
	}()

	s.log.Info("Bus server started", "address", s.address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return s.app.Shutdown(shutdownCtx)
	}
}
