// Package dispatch consumes the bus stream and re-emits events to local
// connections. Every process receives every event and independently re-checks
// its own registry; the filter is entirely local, which trades bus bandwidth
// for never having to keep a cross-process connection directory consistent
// under churn.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/pscheid92/livewire/internal/bus"
	"github.com/pscheid92/livewire/internal/domain"
	"github.com/pscheid92/livewire/internal/hub"
	"github.com/pscheid92/livewire/internal/logging"
	"github.com/pscheid92/livewire/internal/metrics"
)

// Dispatcher delivers bus messages to this process's connections. One
// Dispatcher runs per process; the bus client may deliver messages
// concurrently, so everything here goes through the concurrency-safe
// registry and per-connection writers.
type Dispatcher struct {
	registry *hub.Registry
	stream   <-chan bus.Message
}

func NewDispatcher(registry *hub.Registry, stream <-chan bus.Message) *Dispatcher {
	return &Dispatcher{registry: registry, stream: stream}
}

// Run consumes the stream until ctx is cancelled or the stream closes. A
// malformed message never stops the loop; the next message on the same
// channel is processed normally.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-d.stream:
			if !ok {
				return
			}
			d.Handle(msg)
		case <-ctx.Done():
			return
		}
	}
}

// Handle routes one bus message. The switch is exhaustive over the closed
// channel set; the bus layer already rejects traffic outside it.
func (d *Dispatcher) Handle(msg bus.Message) {
	metrics.EventsReceived.WithLabelValues(msg.Channel.String()).Inc()

	switch msg.Channel {
	case domain.ChannelMessageSent,
		domain.ChannelNotificationSent,
		domain.ChannelUnreadChanged:
		var target domain.TargetedPayload
		if err := json.Unmarshal(msg.Payload, &target); err != nil || target.ToUserID == "" {
			d.dropMalformed(msg, err)
			return
		}
		d.deliverTo(msg.Channel, target.ToUserID, msg.Payload)

	case domain.ChannelMessageEdited,
		domain.ChannelMessageDeleted:
		var targets domain.DualTargetPayload
		if err := json.Unmarshal(msg.Payload, &targets); err != nil || targets.SenderID == "" || targets.ReceiverID == "" {
			d.dropMalformed(msg, err)
			return
		}
		// Sender and receiver are evaluated independently: a process
		// holding only one of the two still delivers to that one.
		d.deliverTo(msg.Channel, targets.SenderID, msg.Payload)
		if targets.ReceiverID != targets.SenderID {
			d.deliverTo(msg.Channel, targets.ReceiverID, msg.Payload)
		}

	case domain.ChannelPostCreated,
		domain.ChannelPostUpdated,
		domain.ChannelPostDeleted,
		domain.ChannelGroupCreated,
		domain.ChannelGroupUpdated,
		domain.ChannelGroupDeleted,
		domain.ChannelUserUpdated,
		domain.ChannelPresenceChanged:
		d.deliverAll(msg.Channel, msg.Payload)
	}
}

// deliverTo emits to the local connection for userID, if any. A lookup miss
// is an expected, silent outcome: whichever process holds the user's
// connection reaches the opposite decision and delivers there.
func (d *Dispatcher) deliverTo(channel domain.Channel, userID string, payload []byte) {
	conn, ok := d.registry.Lookup(userID)
	if !ok {
		return
	}

	frame, err := domain.EncodeDelivery(channel.String(), payload)
	if err != nil {
		d.dropMalformed(bus.Message{Channel: channel, Payload: payload}, err)
		return
	}

	d.send(channel, conn, frame)
}

// deliverAll emits to every local connection; global events need no registry
// lookup because every connected client is a recipient by definition.
func (d *Dispatcher) deliverAll(channel domain.Channel, payload []byte) {
	frame, err := domain.EncodeDelivery(channel.String(), payload)
	if err != nil {
		d.dropMalformed(bus.Message{Channel: channel, Payload: payload}, err)
		return
	}

	for _, conn := range d.registry.Snapshot() {
		d.send(channel, conn, frame)
	}
}

// send writes one frame and swallows transport errors: the target may have
// disconnected between lookup and write, which is an accepted race. A client
// whose send buffer is full gets disconnected instead of silently missing
// every event from here on; closing the socket hands the rest of the
// teardown to the connection's handler.
func (d *Dispatcher) send(channel domain.Channel, conn *hub.Conn, frame []byte) {
	err := conn.Send(frame)
	if err == nil {
		metrics.EventsDelivered.WithLabelValues(channel.String()).Inc()
		return
	}

	metrics.DeliveryFailures.WithLabelValues(channel.String()).Inc()

	if errors.Is(err, hub.ErrSendBufferFull) {
		metrics.SlowClientsDropped.Inc()
		conn.Close()
		slog.Warn("Disconnecting slow client",
			"channel", channel.String(),
			"user_id", conn.UserID)
		return
	}

	slog.Debug("Delivery swallowed on dead connection",
		"channel", channel.String(),
		"user_id", conn.UserID,
		"error", err)
}

func (d *Dispatcher) dropMalformed(msg bus.Message, err error) {
	metrics.MalformedPayloads.WithLabelValues(msg.Channel.String()).Inc()
	logging.WithError(err).Warn("Dropping malformed bus payload",
		"channel", msg.Channel.String())
}
