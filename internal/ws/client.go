package ws

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ClientState represents the lifecycle state of a WebSocket client
type ClientState int32

const (
	ClientStateConnected ClientState = iota // Registered with the hub
	ClientStateClosing                      // Shutdown initiated
	ClientStateClosed                       // Terminal
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 30 * time.Second

	// Clients only send control frames; anything larger is a protocol error.
	maxMessageSize = 512

	// Timeout for hub registration
	registerTimeout = 5 * time.Second
)

var ErrRegisterTimeout = errors.New("hub registration timed out")

// Client represents a single WebSocket connection
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan *WSMessage
	userID        int64
	connCloseOnce sync.Once
	state         atomic.Int32

	// DroppedMessages tracks how many messages have been dropped due to full buffer
	DroppedMessages int64
}

// NewClient creates a new client for an authenticated user
func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *WSMessage, clientSendBufferSize),
		userID: userID,
	}
	c.state.Store(int32(ClientStateConnected))
	return c
}

// Register adds the client to the hub and waits for the hub to accept it.
func (c *Client) Register() error {
	req := registerRequest{client: c, done: make(chan struct{})}
	select {
	case c.hub.registerSync <- req:
	case <-time.After(registerTimeout):
		return ErrRegisterTimeout
	}
	<-req.done
	return nil
}

// Close performs cleanup for the client, ensuring it only happens once
func (c *Client) Close() {
	if !c.transitionTo(ClientStateClosing) {
		c.connCloseOnce.Do(func() { c.conn.Close() })
		return
	}
	c.connCloseOnce.Do(func() { c.conn.Close() })
	c.transitionTo(ClientStateClosed)
}

// ReadPump drains control frames and detects disconnects. Inbound data
// messages are ignored.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "component", "ws", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if c.IsClosed() {
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				slog.Debug("websocket write error", "component", "ws", "user_id", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			if c.IsClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendHello queues the HELLO message that opens the session.
func (c *Client) SendHello() {
	c.send <- &WSMessage{
		Op: OpHello,
		Data: HelloPayload{
			ProtocolVersion:   ProtocolVersion,
			HeartbeatInterval: pingPeriod.Milliseconds(),
			UserID:            c.userID,
		},
	}
}

func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

func (c *Client) IsClosed() bool {
	s := c.State()
	return s == ClientStateClosing || s == ClientStateClosed
}

func isValidClientTransition(from, to ClientState) bool {
	switch from {
	case ClientStateConnected:
		return to == ClientStateClosing
	case ClientStateClosing:
		return to == ClientStateClosed
	}
	return false
}

func (c *Client) transitionTo(newState ClientState) bool {
	for {
		current := ClientState(c.state.Load())
		if !isValidClientTransition(current, newState) {
			return false
		}
		if c.state.CompareAndSwap(int32(current), int32(newState)) {
			return true
		}
	}
}

// CloseSend closes the send channel (called by hub during cleanup)
func (c *Client) CloseSend() {
	if c.transitionTo(ClientStateClosing) {
		close(c.send)
		c.connCloseOnce.Do(func() { c.conn.Close() })
		c.transitionTo(ClientStateClosed)
	}
}
