package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/livewire/internal/hub"
	"github.com/pscheid92/livewire/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin enforcement happens at the edge proxy
	},
}

// handleWebSocket upgrades the request and keeps the connection alive
// until the client disconnects or misses its heartbeat window. Teardown
// is scoped to this handler: every successful registration is paired
// with exactly one unregister, presence clear, and limiter release.
func (s *Server) handleWebSocket(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id required"})
	}

	if !s.limiter.Acquire() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "connection limit reached"})
	}

	sock, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limiter.Release()
		// Echo already wrote the failure response during the handshake.
		return nil
	}

	conn := hub.NewConn(userID, sock, s.clock.Now())
	log := logging.WithUser(userID).With("connection_id", conn.ID)

	// Last registration wins: a displaced predecessor is torn down here,
	// and its own handler's deferred cleanup becomes a no-op because the
	// registry entry no longer carries its connection ID.
	if prev := s.registry.Register(conn); prev != nil {
		log.Info("Displacing previous connection", "previous_connection_id", prev.ID)
		s.monitor.Stop(prev.ID)
		prev.Close()
	}

	defer func() {
		s.monitor.Stop(conn.ID)
		conn.Close()
		if s.registry.Unregister(userID, conn.ID) {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.StoreTimeout)
			defer cancel()
			if err := s.store.MarkOffline(ctx, userID); err != nil {
				log.Warn("Failed to clear presence", "error", err)
			}
			s.presence.Invalidate(userID)
		}
		s.limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.StoreTimeout)
	if err := s.store.MarkOnline(ctx, userID, conn.ID); err != nil {
		// The connection still works without a presence record; peers
		// just see the user as offline until the next reconnect.
		log.Warn("Failed to record presence", "error", err)
	}
	cancel()
	s.presence.Invalidate(userID)

	s.monitor.Start(conn.ID, conn.Ping)

	window := s.config.HeartbeatInterval + s.config.HeartbeatTimeout
	_ = sock.SetReadDeadline(time.Now().Add(window))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(window))
	})

	log.Info("Connection established")

	// Read pump. Clients do not send application data; reading only
	// drains control frames and detects the close or deadline expiry.
	for {
		if _, _, err := sock.ReadMessage(); err != nil {
			break
		}
	}

	log.Info("Connection closed")

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
