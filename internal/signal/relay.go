// Package signal relays ephemeral call-setup messages (offer, answer, ICE
// candidates, end) between two connections on the same process. The relay is
// stateless: no validation that an offer preceded an answer, no timeout, no
// cleanup. Call state lives entirely in the two clients.
package signal

import (
	"log/slog"

	"github.com/pscheid92/livewire/internal/domain"
	"github.com/pscheid92/livewire/internal/hub"
	"github.com/pscheid92/livewire/internal/metrics"
)

// Relay forwards signaling payloads to a local recipient. It consults only
// this process's registry and never touches the bus: if caller and callee
// are connected to different processes the message is silently dropped.
// Cross-process signaling would need a dedicated targeted bus channel; see
// DESIGN.md for why the same-process limitation is kept.
type Relay struct {
	registry *hub.Registry
}

func NewRelay(registry *hub.Registry) *Relay {
	return &Relay{registry: registry}
}

// Relay forwards one signaling message to toUserID's local connection.
// Reports whether the message was handed to a connection; a miss or a dead
// connection is a silent drop with no retry and no queuing.
func (r *Relay) Relay(kind domain.SignalKind, toUserID string, payload []byte) bool {
	conn, ok := r.registry.Lookup(toUserID)
	if !ok {
		metrics.SignalsRelayed.WithLabelValues(kind.String(), "dropped").Inc()
		return false
	}

	frame, err := domain.EncodeDelivery(kind.Event(), payload)
	if err != nil {
		metrics.SignalsRelayed.WithLabelValues(kind.String(), "dropped").Inc()
		slog.Warn("Dropping undeliverable signaling frame", "kind", kind.String(), "error", err)
		return false
	}

	if err := conn.Send(frame); err != nil {
		metrics.SignalsRelayed.WithLabelValues(kind.String(), "dropped").Inc()
		slog.Debug("Signaling send swallowed on dead connection",
			"kind", kind.String(),
			"to_user_id", toUserID,
			"error", err)
		return false
	}

	metrics.SignalsRelayed.WithLabelValues(kind.String(), "delivered").Inc()
	return true
}
