package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/livewire/internal/version"
)

const healthCheckTimeout = 2 * time.Second

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Get(),
	})
}

// handleReadiness reports whether this process can serve traffic. Redis
// being unreachable makes the process not ready: new connections could
// not record presence and published events would not reach the bus.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"redis":  err.Error(),
		})
	}

	resp := map[string]any{
		"status":      "ok",
		"connections": s.registry.Count(),
		"capacity":    s.limiter.Max(),
	}

	if procs, err := s.processes.ActiveProcesses(ctx); err == nil {
		resp["processes"] = len(procs)
	}

	return c.JSON(http.StatusOK, resp)
}
