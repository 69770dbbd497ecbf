package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer     = 256
	defaultMaxMessageSize = 8192
)

// Handler reacts to a client's lifecycle and inbound frames. Frames of one
// client are handled one at a time, in arrival order.
type Handler interface {
	HandleConnect(ctx context.Context, session Session)
	HandleFrame(ctx context.Context, session Session, data []byte)
	// HandleHeartbeat runs for every pong, at most pongWait apart on a live connection
	HandleHeartbeat(ctx context.Context, session Session)
	HandleDisconnect(ctx context.Context, session Session)
}

// Session is the identity of one live connection
type Session interface {
	ID() string
	UserID() uint64
	SetUserID(userID uint64)
}

// Client represents a single WebSocket connection
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	sessionID      string
	userID         atomic.Uint64
	maxMessageSize int64
}

// NewClient creates a new WebSocket client with a fresh session id
func NewClient(hub *Hub, conn *websocket.Conn, sendBuffer int, maxMessageSize int64) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	return &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		sessionID:      uuid.NewString(),
		maxMessageSize: maxMessageSize,
	}
}

func (c *Client) ID() string              { return c.sessionID }
func (c *Client) UserID() uint64          { return c.userID.Load() }
func (c *Client) SetUserID(userID uint64) { c.userID.Store(userID) }

// ReadPump reads frames from the WebSocket and hands them to handler until
// the connection closes.
func (c *Client) ReadPump(handler Handler) {
	ctx := context.Background()
	defer func() {
		handler.HandleDisconnect(ctx, c)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		handler.HandleHeartbeat(ctx, c)
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handler.HandleFrame(ctx, c, data)
	}
}

// WritePump sends messages to the WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Serve registers the client, announces it to handler and runs both pumps.
// It returns once the read side has finished.
func (c *Client) Serve(handler Handler) {
	c.hub.Register(c)
	go c.WritePump()
	handler.HandleConnect(context.Background(), c)
	c.ReadPump(handler)
}
