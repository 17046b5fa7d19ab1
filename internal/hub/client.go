package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

// conn wraps one WebSocket connection with its send queue and liveness clock.
//
// Writes go through a buffered channel drained by a single writePump goroutine,
// so Publish never blocks on a slow socket. lastSeen is bumped on every inbound
// frame; the hub's janitor evicts connections that go quiet.
type conn struct {
	ws     *websocket.Conn
	userID string
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64 // unix nanos
}

func newConn(ws *websocket.Conn, userID string, sendBuffer int, now time.Time) *conn {
	c := &conn{
		ws:     ws,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	c.touch(now)
	return c
}

// touch records inbound activity for heartbeat accounting.
func (c *conn) touch(t time.Time) {
	c.lastSeen.Store(t.UnixNano())
}

// seen returns the time of the last inbound frame.
func (c *conn) seen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// enqueue offers a message to the send queue without blocking.
// Returns false when the buffer is full and the message was dropped.
func (c *conn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump drains the send queue onto the socket until the connection closes.
func (c *conn) writePump(logger *slog.Logger) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := websocket.Message.Send(c.ws, string(msg)); err != nil {
				logger.Debug("hub write failed", "user_id", c.userID, "error", err)
				c.close()
				return
			}
		}
	}
}

// close tears the connection down exactly once. Closing the socket unblocks
// the read loop, which triggers unregistration in the hub.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
