package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/livewire/internal/bus"
	"github.com/pscheid92/livewire/internal/domain"
	"github.com/pscheid92/livewire/internal/hub"
	"github.com/pscheid92/livewire/internal/metrics"
)

// process simulates one server process: its own registry, its own dispatcher,
// and a websocket endpoint clients dial into. Several processes together with
// fanout() model the shared bus, where every process receives every event.
type process struct {
	t        *testing.T
	registry *hub.Registry
	d        *Dispatcher
	server   *httptest.Server
}

func newProcess(t *testing.T) *process {
	t.Helper()

	registry := hub.NewRegistry()
	p := &process{
		t:        t,
		registry: registry,
		d:        NewDispatcher(registry, nil),
	}

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sock, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn := hub.NewConn(r.URL.Query().Get("user"), sock, time.Now())
		registry.Register(conn)
	}))
	t.Cleanup(p.server.Close)

	return p
}

// connect dials a client for userID and waits until it is registered.
func (p *process) connect(userID string) *ws.Conn {
	p.t.Helper()

	url := "ws" + strings.TrimPrefix(p.server.URL, "http") + "?user=" + userID
	client, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(p.t, err)
	p.t.Cleanup(func() { client.Close() })

	for range 100 {
		if _, ok := p.registry.Lookup(userID); ok {
			return client
		}
		time.Sleep(time.Millisecond)
	}
	p.t.Fatalf("connection for %s never registered", userID)
	return nil
}

// fanout delivers one published event to every process, the way the shared
// bus does.
func fanout(processes []*process, channel domain.Channel, payload string) {
	for _, p := range processes {
		p.d.Handle(bus.Message{Channel: channel, Payload: []byte(payload)})
	}
}

func readFrame(t *testing.T, client *ws.Conn) domain.Delivery {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	var d domain.Delivery
	require.NoError(t, json.Unmarshal(raw, &d))
	return d
}

func assertNoFrame(t *testing.T, client *ws.Conn) {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := client.ReadMessage()
	require.Error(t, err, "expected no frame, but one arrived")
}

func TestTargetedEventDeliveredOnlyWhereRegistered(t *testing.T) {
	p1 := newProcess(t)
	p2 := newProcess(t)

	alice := p1.connect("alice")
	bob := p2.connect("bob")

	payload := `{"to_user_id":"alice","id":"m1"}`
	fanout([]*process{p1, p2}, domain.ChannelMessageSent, payload)

	frame := readFrame(t, alice)
	assert.Equal(t, "message.sent", frame.Event)
	assert.JSONEq(t, payload, string(frame.Payload))

	// Exactly one delivery: nothing further for alice, nothing for bob.
	assertNoFrame(t, alice)
	assertNoFrame(t, bob)
}

func TestTargetedEventDroppedWhenRecipientOffline(t *testing.T) {
	p1 := newProcess(t)
	bystander := p1.connect("bob")

	// carol is connected nowhere; the event is simply dropped, not queued.
	fanout([]*process{p1}, domain.ChannelNotificationSent, `{"to_user_id":"carol"}`)

	assertNoFrame(t, bystander)
}

func TestGlobalEventDeliveredToEveryConnection(t *testing.T) {
	p1 := newProcess(t)
	p2 := newProcess(t)

	clients := []*ws.Conn{p1.connect("alice"), p1.connect("bob"), p2.connect("carol")}

	payload := `{"post_id":"p42","author_id":"dave"}`
	fanout([]*process{p1, p2}, domain.ChannelPostCreated, payload)

	for _, client := range clients {
		frame := readFrame(t, client)
		assert.Equal(t, "post.created", frame.Event)
		assert.JSONEq(t, payload, string(frame.Payload))
		assertNoFrame(t, client)
	}
}

func TestDualRecipientSplitAcrossProcesses(t *testing.T) {
	p1 := newProcess(t)
	p2 := newProcess(t)

	sender := p1.connect("sam")
	receiver := p2.connect("rita")
	bystander := p2.connect("zoe")

	payload := `{"sender_id":"sam","receiver_id":"rita","message_id":"m9"}`
	fanout([]*process{p1, p2}, domain.ChannelMessageEdited, payload)

	assert.Equal(t, "message.edited", readFrame(t, sender).Event)
	assert.Equal(t, "message.edited", readFrame(t, receiver).Event)

	assertNoFrame(t, sender)
	assertNoFrame(t, receiver)
	assertNoFrame(t, bystander)
}

func TestDualRecipientSelfMessageDeliveredOnce(t *testing.T) {
	p1 := newProcess(t)
	sam := p1.connect("sam")

	fanout([]*process{p1}, domain.ChannelMessageDeleted,
		`{"sender_id":"sam","receiver_id":"sam"}`)

	readFrame(t, sam)
	assertNoFrame(t, sam)
}

func TestMalformedPayloadDoesNotBlockChannel(t *testing.T) {
	p1 := newProcess(t)
	alice := p1.connect("alice")

	// Invalid JSON, then a payload missing its target, then a valid one.
	p1.d.Handle(bus.Message{Channel: domain.ChannelMessageSent, Payload: []byte(`{garbage`)})
	p1.d.Handle(bus.Message{Channel: domain.ChannelMessageSent, Payload: []byte(`{"id":"m1"}`)})
	p1.d.Handle(bus.Message{Channel: domain.ChannelMessageSent, Payload: []byte(`{"to_user_id":"alice","id":"m2"}`)})

	frame := readFrame(t, alice)
	assert.JSONEq(t, `{"to_user_id":"alice","id":"m2"}`, string(frame.Payload))
	assertNoFrame(t, alice)
}

func TestDirectMessageAcrossProcesses(t *testing.T) {
	// User A on P1 sends a direct message to user B on P2: P2 emits the
	// message event to B, P1 emits nothing.
	p1 := newProcess(t)
	p2 := newProcess(t)

	a := p1.connect("a")
	b := p2.connect("b")

	payload := `{"to_user_id":"b","from_user_id":"a","text":"hi"}`
	fanout([]*process{p1, p2}, domain.ChannelMessageSent, payload)

	frame := readFrame(t, b)
	assert.Equal(t, "message.sent", frame.Event)
	assert.JSONEq(t, payload, string(frame.Payload))

	assertNoFrame(t, a)
}

func TestRunConsumesStreamUntilCancelled(t *testing.T) {
	registry := hub.NewRegistry()
	stream := make(chan bus.Message, 4)
	d := NewDispatcher(registry, stream)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	stream <- bus.Message{Channel: domain.ChannelPostCreated, Payload: []byte(`{}`)}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestRunStopsOnClosedStream(t *testing.T) {
	stream := make(chan bus.Message)
	d := NewDispatcher(hub.NewRegistry(), stream)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	close(stream)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on closed stream")
	}
}

func TestSlowClientDisconnected(t *testing.T) {
	p := newProcess(t)
	client := p.connect("slow")

	dropped := testutil.ToFloat64(metrics.SlowClientsDropped)

	// The client never reads. Large frames stall the write pump on the
	// socket, the send buffer fills, and the dispatcher must cut the
	// connection loose rather than leave it registered and silently
	// missing every further event.
	payload := fmt.Sprintf(`{"to_user_id":"slow","blob":%q}`, strings.Repeat("x", 1<<20))
	require.Eventually(t, func() bool {
		p.d.Handle(bus.Message{Channel: domain.ChannelMessageSent, Payload: []byte(payload)})
		conn, ok := p.registry.Lookup("slow")
		if !ok {
			return false
		}
		return errors.Is(conn.Send([]byte(`{}`)), hub.ErrConnClosed)
	}, 5*time.Second, 10*time.Millisecond)

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.SlowClientsDropped), dropped+1)

	// The cut socket surfaces to the client as a read error once the
	// already-buffered frames are drained.
	client.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := client.ReadMessage(); err != nil {
			break
		}
	}
}
