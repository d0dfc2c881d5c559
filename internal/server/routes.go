package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// New sockets are rate limited per IP on top of the global cap.
	s.echo.GET("/ws", s.handleWebSocket, newRateLimiter(s.config.ConnectRatePerSec, s.config.ConnectBurst))

	api := s.echo.Group("/api")
	api.POST("/events/:channel", s.handlePublishEvent)
	api.GET("/presence/:user", s.handleQueryPresence)
	api.POST("/presence/batch", s.handleQueryPresenceBatch)
	api.POST("/signal/:kind", s.handleRelaySignal)
}
