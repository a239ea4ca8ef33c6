package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead. Pings go out at a fraction of this.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxInboundBytes caps a single client frame.
	maxInboundBytes = 16 * 1024

	// sendBufferSize is the per-client outbound buffer. A full buffer
	// marks the client slow and its frame is dropped.
	sendBufferSize = 64
)

// Client is one live connection, exclusively owned by the hub for its
// lifetime. The group is fixed at connect time; removal from membership is
// the only cleanup a disconnect requires.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	group model.Group
	id    string

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// Group returns the client's audience.
func (c *Client) Group() model.Group { return c.group }

// ID returns the producer-supplied client id, possibly empty.
func (c *Client) ID() string { return c.id }

// NewClient registers a connection with the hub and pushes the
// connection-established frame. The caller must invoke Run to start the
// pumps.
func (h *Hub) NewClient(conn *websocket.Conn, group model.Group, id string) *Client {
	c := &Client{
		hub:    h,
		conn:   conn,
		group:  group,
		id:     id,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
	h.register(c)
	return c
}

// Run drives the read and write pumps until the connection dies or ctx is
// cancelled. It blocks; call it from the connection's handler goroutine.
func (c *Client) Run(ctx context.Context) {
	active := 0
	if c.hub.activeCount != nil {
		active = c.hub.activeCount(ctx)
	}
	c.SendEnvelope(model.NewEnvelope(model.MsgConnectionEstablished, model.ConnectionEstablished{
		ClientType:        c.group,
		ClientID:          c.id,
		ActiveEmergencies: active,
	}))

	go c.writePump()
	c.readPump(ctx)
}

// SendEnvelope queues a frame for this client, dropping it when the buffer
// is full.
func (c *Client) SendEnvelope(env model.Envelope) bool {
	frame, err := json.Marshal(env)
	if err != nil {
		c.hub.logger.Error("send: marshal envelope", "type", env.Type, "error", err)
		return false
	}
	return c.trySend(frame)
}

func (c *Client) trySend(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears the connection down and removes the client from its group.
// Safe to call multiple times and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.hub.unregister(c)
		_ = c.conn.Close()
	})
}

// readPump consumes client frames and hands them to the dispatcher. A
// malformed message is logged per-frame and never closes the connection;
// only transport errors end the loop.
func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("read: unexpected close", "group", c.group, "client_id", c.id, "error", err)
			}
			return
		}
		if c.hub.onMessage != nil {
			c.hub.onMessage(ctx, c, raw)
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
