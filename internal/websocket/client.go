package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one caregiver's WebSocket connection. It only receives events
// for the care circles the caregiver belonged to when the connection was
// opened; joining a new circle takes effect on reconnect.
type Client struct {
	hub     *Hub
	conn    *ws.Conn
	send    chan []byte
	userID  int64
	circles map[int64]struct{}
}

// NewClient creates a Client for the given caregiver, subscribed to the
// given senior IDs.
func NewClient(hub *Hub, conn *ws.Conn, userID int64, circleIDs []int64) *Client {
	circles := make(map[int64]struct{}, len(circleIDs))
	for _, id := range circleIDs {
		circles[id] = struct{}{}
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		userID:  userID,
		circles: circles,
	}
}

// inCircle reports whether the client should receive events for the
// senior. Senior ID zero marks service-wide events, delivered to everyone.
func (c *Client) inCircle(seniorID int64) bool {
	if seniorID == 0 {
		return true
	}
	_, ok := c.circles[seniorID]
	return ok
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel, connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
