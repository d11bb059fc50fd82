package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Connection timing. Pings go out often enough that a healthy peer always
// answers inside the read deadline.
const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = readTimeout * 9 / 10

	// Viewers only send control frames; anything larger is a protocol error.
	maxInbound = 4 << 10

	// queueDepth is how many messages a client may lag before it is dropped.
	queueDepth = 64
)

// Conn is the part of a websocket connection a client needs. The fiber
// and gorilla connections both satisfy it.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one viewer attached to a hub.
type Client struct {
	id   string
	hub  *Hub
	conn Conn
	send chan Message
}

// NewClient attaches conn to hub. If the hub has already stopped the
// client is created closed and Run returns as soon as the peer goes away.
func NewClient(hub *Hub, conn Conn) *Client {
	c := &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan Message, queueDepth),
	}
	if !hub.add(c) {
		close(c.send)
	}
	return c
}

// ID returns the client's connection identifier.
func (c *Client) ID() string { return c.id }

// Run serves the connection and blocks until it is gone, as fiber's
// websocket handlers must.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop discards inbound frames; it exists to notice pongs and
// disconnects.
func (c *Client) readLoop() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop owns every write to the connection.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(msg.Kind.frameType(), msg.Data); err != nil {
				return
			}

		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
