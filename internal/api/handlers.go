package api

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the unauthenticated operational endpoints.
type Handler struct {
	db      Pinger
	clock   clock.Clock
	version string
}

// NewHandler creates a new Handler. A nil clock uses wall time.
func NewHandler(db Pinger, clk clock.Clock, version string) *Handler {
	if clk == nil {
		clk = clock.New()
	}
	return &Handler{db: db, clock: clk, version: version}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth reports service health; 503 when the database is unreachable.
func (h *Handler) HandleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:    "ok",
		Database:  "ok",
		Timestamp: h.clock.Now().UTC(),
		Service:   "floorflow",
		Version:   h.version,
	}
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Database = "unreachable"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
