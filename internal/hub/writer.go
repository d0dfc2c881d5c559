package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 16
	writeDeadline  = 5 * time.Second
)

var (
	// ErrConnClosed reports a write attempt on a torn-down connection.
	ErrConnClosed = errors.New("hub: connection closed")
	// ErrSendBufferFull reports a client that cannot keep up with its
	// outbound event stream.
	ErrSendBufferFull = errors.New("hub: send buffer full")
)

type outboundFrame struct {
	messageType int
	data        []byte
}

// clientWriter serializes all writes to one websocket connection. The
// gorilla transport allows a single concurrent writer, so data frames and
// ping control frames both pass through here.
type clientWriter struct {
	conn     *websocket.Conn
	sendCh   chan outboundFrame
	done     chan struct{}
	stopOnce sync.Once
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan outboundFrame, sendBufferSize),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case frame := <-cw.sendCh:
			cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				// Tear down immediately so enqueue fails fast instead of
				// buffering frames the socket can never take.
				cw.stop()
				return
			}
		case <-cw.done:
			return
		}
	}
}

// enqueue hands a frame to the write pump without blocking. A full buffer is
// reported to the caller, who decides whether the client is too slow to keep.
func (cw *clientWriter) enqueue(messageType int, data []byte) error {
	select {
	case <-cw.done:
		return ErrConnClosed
	default:
	}

	select {
	case cw.sendCh <- outboundFrame{messageType: messageType, data: data}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// stop is idempotent and closes the underlying socket, which also unblocks
// any read loop on the connection.
func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.conn.Close()
	})
}
