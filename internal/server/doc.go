// Package server implements the HTTP surface using Echo.
//
// Routes: WebSocket attach (/ws), event ingestion (/api/events),
// presence queries (/api/presence), call signaling (/api/signal), and
// health/metrics endpoints. Handlers split by concern: handlers.go for
// the JSON API, handlers_ws.go for the connection lifecycle,
// handlers_health.go for probes.
package server
