package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent (no frame, no pong)
	// before it is considered dead.
	pongWait = 90 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// maxMessageSize caps inbound frames; commands are small.
	maxMessageSize = 4096

	// sendBufferSize is the outbound queue length. A client that lets it
	// fill up is disconnected.
	sendBufferSize = 256
)

// Client is one WebSocket connection. ReadPump and WritePump each run in
// their own goroutine; gorilla/websocket allows one concurrent reader and
// one concurrent writer.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string

	// limiter drops frames arriving faster than the configured rate.
	limiter *rate.Limiter

	mu sync.Mutex // serializes conn writes
}

// NewClient wraps conn. limiter may be nil.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, limiter *rate.Limiter) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: remoteAddr,
		limiter:    limiter,
	}
}

// RemoteAddr is the client IP used for login rate limiting.
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// ReadPump reads frames until the connection fails, dispatching each one
// before reading the next. It deregisters the session on exit.
func (c *Client) ReadPump(d *Dispatcher) {
	defer func() {
		c.hub.Close(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for %s: %v", c.remoteAddr, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for %s: %v", c.remoteAddr, err)
			}
			return
		}

		// Any frame proves liveness.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		d.Dispatch(c, raw)
	}
}

// WritePump drains the send queue onto the socket and pings periodically.
// A closed queue means the hub removed the session: remaining frames have
// already been written, so send a close frame and stop.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.writeMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// allow consults the flood guard.
func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}
