package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"anomidate/internal/models"
)

const (
	// maxDroppedMessagesBeforeDisconnect is the threshold for disconnecting slow clients
	maxDroppedMessagesBeforeDisconnect = 100

	clientSendBufferSize = 64
)

// registerRequest is used for synchronous registration with a callback
type registerRequest struct {
	client *Client
	done   chan struct{}
}

type userMessage struct {
	userID int64
	msg    *WSMessage
}

// Hub fans notifications out to every open connection of a user. A user may
// hold several connections (one per tab).
type Hub struct {
	userClients  map[int64]map[*Client]struct{}
	registerSync chan registerRequest
	unregister   chan *Client
	send         chan userMessage
	shutdown     chan struct{}
	stopped      chan struct{}
	sequence     atomic.Int64
	mu           sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		userClients:  make(map[int64]map[*Client]struct{}),
		registerSync: make(chan registerRequest),
		unregister:   make(chan *Client),
		send:         make(chan userMessage, 256),
		shutdown:     make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for userID, clients := range h.userClients {
				for client := range clients {
					client.CloseSend()
				}
				delete(h.userClients, userID)
			}
			h.mu.Unlock()
			slog.Info("shutdown complete", "component", "hub")
			return

		case req := <-h.registerSync:
			h.mu.Lock()
			clients, ok := h.userClients[req.client.userID]
			if !ok {
				clients = make(map[*Client]struct{})
				h.userClients[req.client.userID] = clients
			}
			clients[req.client] = struct{}{}
			h.mu.Unlock()
			close(req.done)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.userClients[client.userID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					client.CloseSend()
				}
				if len(clients) == 0 {
					delete(h.userClients, client.userID)
				}
			}
			h.mu.Unlock()

		case um := <-h.send:
			h.mu.RLock()
			for client := range h.userClients[um.userID] {
				h.sendToClientLocked(client, um.msg)
			}
			h.mu.RUnlock()
		}
	}
}

// Shutdown stops Run and closes every connection.
func (h *Hub) Shutdown() {
	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	<-h.stopped
}

// Caller must hold at least a read lock on h.mu.
func (h *Hub) sendToClientLocked(client *Client, msg *WSMessage) {
	if client.IsClosed() {
		return
	}
	select {
	case client.send <- msg:
	default:
		// Client buffer full - track the drop
		dropped := atomic.AddInt64(&client.DroppedMessages, 1)

		// Log warning periodically (every 10 drops)
		if dropped%10 == 1 {
			slog.Warn("dropped messages for slow client", "component", "hub", "dropped", dropped, "user_id", client.userID)
		}

		// Disconnect clients that fall too far behind
		if dropped >= maxDroppedMessagesBeforeDisconnect {
			slog.Warn("disconnecting slow client", "component", "hub", "user_id", client.userID, "dropped", dropped)
			client.Close()
		}
	}
}

// SendDispatchToUser queues an event for all of the user's connections.
func (h *Hub) SendDispatchToUser(userID int64, eventType string, payload any) {
	seq := h.sequence.Add(1)
	msg := &WSMessage{Op: OpDispatch, Type: eventType, Data: payload, Seq: &seq}

	select {
	case h.send <- userMessage{userID: userID, msg: msg}:
	case <-h.shutdown:
	}
}

// IsUserOnline reports whether the user has at least one open connection.
func (h *Hub) IsUserOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID]) > 0
}

// MessageCreated notifies both parties of a new direct message.
func (h *Hub) MessageCreated(m *models.Message) {
	payload := newMessageCreatePayload(m)
	h.SendDispatchToUser(m.ReceiverID, EventMessageCreate, payload)
	h.SendDispatchToUser(m.SenderID, EventMessageCreate, payload)
}

// MatchCreated tells each user about the other.
func (h *Hub) MatchCreated(a, b *models.User) {
	h.SendDispatchToUser(a.ID, EventMatchCreate, MatchCreatePayload{UserID: b.ID, Username: b.Username})
	h.SendDispatchToUser(b.ID, EventMatchCreate, MatchCreatePayload{UserID: a.ID, Username: a.Username})
}
