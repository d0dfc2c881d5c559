package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/livewire/internal/domain"
	"github.com/pscheid92/livewire/internal/logging"
)

// maxEventPayloadBytes caps inbound event bodies; anything larger is
// rejected before it reaches the bus.
const maxEventPayloadBytes = 64 * 1024

// handlePublishEvent accepts a committed domain event and pushes it onto
// the broadcast bus. The mutation behind the event has already been
// persisted by the caller, so a bus failure is logged and swallowed
// rather than surfaced as a request error.
func (s *Server) handlePublishEvent(c echo.Context) error {
	channel, ok := domain.ParseChannel(c.Param("channel"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown channel"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEventPayloadBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}
	if len(body) > maxEventPayloadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
	}
	if len(body) == 0 || !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "payload must be valid JSON"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.StoreTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, channel, body); err != nil {
		logging.WithChannel(string(channel)).Warn("Event publish failed, real-time delivery degraded", "error", err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleQueryPresence(c echo.Context) error {
	userID := c.Param("user")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.StoreTimeout)
	defer cancel()

	return c.JSON(http.StatusOK, map[string]any{
		"user_id": userID,
		"online":  s.presence.IsOnline(ctx, userID),
	})
}

type presenceBatchRequest struct {
	UserIDs []string `json:"user_ids"`
}

// maxPresenceBatchSize bounds a single batch lookup.
const maxPresenceBatchSize = 200

func (s *Server) handleQueryPresenceBatch(c echo.Context) error {
	var req presenceBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.UserIDs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_ids required"})
	}
	if len(req.UserIDs) > maxPresenceBatchSize {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "too many user ids"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.StoreTimeout)
	defer cancel()

	return c.JSON(http.StatusOK, map[string]any{
		"online": s.store.IsOnlineBatch(ctx, req.UserIDs),
	})
}

type signalRequest struct {
	ToUserID string          `json:"to_user_id"`
	Payload  json.RawMessage `json:"payload"`
}

// handleRelaySignal forwards a call-signaling message to the recipient if
// they are connected to this process. Delivery is best effort: the
// response does not reveal whether the recipient was reachable.
func (s *Server) handleRelaySignal(c echo.Context) error {
	kind, ok := domain.ParseSignalKind(c.Param("kind"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown signal kind"})
	}

	var req signalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ToUserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "to_user_id required"})
	}

	s.relay.Relay(kind, req.ToUserID, req.Payload)

	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}
