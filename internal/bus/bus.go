package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/livewire/internal/domain"
	"github.com/pscheid92/livewire/internal/metrics"
)

// channelPrefix namespaces bus channels so several deployments can share one
// Redis instance.
const channelPrefix = "livewire:"

// Message is one event received from the bus. Payload is routed verbatim.
type Message struct {
	Channel domain.Channel
	Payload []byte
}

// Bus is the publish/subscribe transport contract. Publish is
// fire-and-forget from the triggering operation's perspective: callers log
// and swallow the returned error, they never propagate it into the business
// flow that produced the event.
type Bus interface {
	Publish(ctx context.Context, channel domain.Channel, payload []byte) error
	SubscribeAll(ctx context.Context) (<-chan Message, error)
}

// RedisBus implements Bus on Redis Pub/Sub. Redis gives per-channel FIFO to
// each subscriber; no extra sequencing is added here.
type RedisBus struct {
	rdb *goredis.Client
}

func NewRedisBus(rdb *goredis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func busChannel(ch domain.Channel) string {
	return channelPrefix + ch.String()
}

func parseBusChannel(name string) (domain.Channel, bool) {
	trimmed, ok := strings.CutPrefix(name, channelPrefix)
	if !ok {
		return "", false
	}
	return domain.ParseChannel(trimmed)
}

// Publish sends one event to every subscribed process. A failure degrades
// real-time delivery on other processes but must not fail the mutation that
// triggered it; the error is returned for the caller to log, and counted
// here so the swallow stays observable.
func (b *RedisBus) Publish(ctx context.Context, channel domain.Channel, payload []byte) error {
	if err := b.rdb.Publish(ctx, busChannel(channel), payload).Err(); err != nil {
		metrics.PublishFailures.WithLabelValues(channel.String()).Inc()
		return fmt.Errorf("publish to bus channel %s: %w", channel, err)
	}
	metrics.EventsPublished.WithLabelValues(channel.String()).Inc()
	return nil
}

// SubscribeAll subscribes to the complete fixed channel set and returns the
// inbound message stream. A process that subscribes to only part of the set
// would silently miss broadcasts, so any subscription failure here is fatal
// to startup. The stream closes when ctx is cancelled.
func (b *RedisBus) SubscribeAll(ctx context.Context) (<-chan Message, error) {
	channels := domain.Channels()
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = busChannel(ch)
	}

	sub := b.rdb.Subscribe(ctx, names...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to channel set: %w", err)
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				channel, known := parseBusChannel(msg.Channel)
				if !known {
					slog.Warn("Dropping message on unrecognized bus channel", "channel", msg.Channel)
					continue
				}
				select {
				case out <- Message{Channel: channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
