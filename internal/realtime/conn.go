package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediline/telehealth-server-go/internal/config"
)

var ErrConnClosed = errors.New("connection closed")

// Conn wraps a websocket and serializes outbound writes through a buffered
// channel with a single write loop, so sends to one user are delivered in
// the order they were enqueued.
type Conn struct {
	UserID string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func NewConn(userID string, ws *websocket.Conn) *Conn {
	return &Conn{
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, config.WSSendBuffer),
		close:  make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per connection.
func (c *Conn) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the buffer
// fills up, the connection is closed to keep backpressure bounded.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.close:
		return ErrConnClosed
	case c.send <- payload:
		return nil
	default:
		c.Close()
		return errors.New("send buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop. Safe to call
// more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.close)
		deadline := time.Now().Add(config.WSWriteWait)
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			deadline,
		)
		_ = c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(config.WSPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(config.WSWriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(config.WSWriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
