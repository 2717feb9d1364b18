package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pulseops/src/metrics"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024 // 1MB for larger JSON messages
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one live WebSocket subscriber. It implements IPulseTransport:
// the hub only ever sees the Enqueue/BufferedBytes/Close capability surface.
// The pending byte counter is incremented on enqueue and decremented once a
// payload has been written to the wire, so BufferedBytes reflects data the
// subscriber has not drained yet.
type Client struct {
	hub  *PulseHub
	conn *websocket.Conn
	send chan []byte

	pending   atomic.Int64
	closeOnce sync.Once
	done      chan struct{}
}

// -----------------------------------------------------------------------------

func newClient(hub *PulseHub, conn *websocket.Conn) *Client {
	bufferMessages := hub.Config.Hub.SendBufferMessages
	if bufferMessages <= 0 {
		bufferMessages = 256
	}
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, bufferMessages),
		done: make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------
// IPulseTransport Implementation
// -----------------------------------------------------------------------------

// Enqueue hands one serialized event to the write pump without blocking.
func (c *Client) Enqueue(payload []byte) error {
	select {
	case <-c.done:
		return ErrTransportClosed
	default:
	}

	select {
	case c.send <- payload:
		c.pending.Add(int64(len(payload)))
		return nil
	default:
		return ErrSendQueueFull
	}
}

// -----------------------------------------------------------------------------

// BufferedBytes reports payload bytes enqueued but not yet written.
func (c *Client) BufferedBytes() int {
	return int(c.pending.Load())
}

// -----------------------------------------------------------------------------

// Close stops both pumps. A graceful close lets the write pump send a close
// frame first; a forced close tears the connection down immediately.
func (c *Client) Close(graceful bool) {
	c.closeOnce.Do(func() {
		close(c.done)
		if !graceful {
			c.conn.Close()
		}
	})
}

// -----------------------------------------------------------------------------
// readPump - handles incoming frames from the subscriber
// Acts as a watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		c.Close(false)
		c.conn.Close()
		c.hub.Logger.Info("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// The feed is one-way: inbound frames only keep the watchdog fed.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
	}
}

// -----------------------------------------------------------------------------
// writePump - sends queued payloads to the subscriber
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
				metrics.HubMessagesDropped.WithLabelValues(metrics.DropReasonWriteError).Inc()
				c.hub.Detach(c)
				return
			}
			c.pending.Add(-int64(len(payload)))

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Detach(c)
				return
			}
		}
	}
}
