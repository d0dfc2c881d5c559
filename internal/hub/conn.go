package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one live local connection. It exists only on the process that
// accepted the network link and dies the instant the transport closes.
type Conn struct {
	ID          uuid.UUID
	UserID      string
	ConnectedAt time.Time

	writer *clientWriter
}

// NewConn wraps an upgraded websocket connection and starts its write pump.
func NewConn(userID string, sock *websocket.Conn, now time.Time) *Conn {
	return &Conn{
		ID:          uuid.New(),
		UserID:      userID,
		ConnectedAt: now,
		writer:      newClientWriter(sock),
	}
}

// Send enqueues a text frame for the client. It never blocks: a slow client
// gets ErrSendBufferFull and a closed connection gets ErrConnClosed.
func (c *Conn) Send(frame []byte) error {
	return c.writer.enqueue(websocket.TextMessage, frame)
}

// Ping enqueues a liveness probe control frame.
func (c *Conn) Ping() error {
	return c.writer.enqueue(websocket.PingMessage, nil)
}

// Close tears down the write pump and the underlying socket. Safe to call
// multiple times.
func (c *Conn) Close() {
	c.writer.stop()
}
