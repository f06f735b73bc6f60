package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"logisync-backend/internal/events"
	"logisync-backend/internal/logger"
)

var errHubClosed = errors.New("websocket hub is shut down")

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	// Registered clients (connection ID -> Client)
	clients map[string]*Client

	// Outbound messages for the run loop
	broadcast chan *Message

	register   chan *Client
	unregister chan *Client

	// Closed once Run returns
	done chan struct{}

	// Mutex for thread-safe client map access
	mu sync.RWMutex
}

// Message is a payload addressed to an organization or to one user
type Message struct {
	OrganizationID string
	UserID         string
	Data           []byte
}

// Envelope is the frame format pushed to clients
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	l := logger.Get()
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.closeSend()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			l.Info("WebSocket client connected",
				zap.String("user_id", client.UserID),
				zap.String("organization_id", client.OrganizationID),
				zap.String("role", client.UserRole),
				zap.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.closeSend()
				l.Info("WebSocket client disconnected",
					zap.String("user_id", client.UserID),
					zap.Int("clients", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				if !message.matches(client) {
					continue
				}
				select {
				case client.send <- message.Data:
				default:
					// Client buffer full, disconnect
					client.closeSend()
					delete(h.clients, id)
					l.Warn("WebSocket client buffer full, disconnecting", zap.String("user_id", client.UserID))
				}
			}
			h.mu.Unlock()
		}
	}
}

func (m *Message) matches(c *Client) bool {
	if m.UserID != "" && m.UserID != c.UserID {
		return false
	}
	return m.OrganizationID == "" || m.OrganizationID == c.OrganizationID
}

func (h *Hub) enqueue(ctx context.Context, msg *Message) error {
	select {
	case h.broadcast <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errHubClosed
	}
}

// BroadcastToOrg sends a message to every client of an organization
func (h *Hub) BroadcastToOrg(ctx context.Context, organizationID string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}
	return h.enqueue(ctx, &Message{OrganizationID: organizationID, Data: payload})
}

// BroadcastToUser sends a message to every connection of a specific user
func (h *Hub) BroadcastToUser(ctx context.Context, userID string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return h.enqueue(ctx, &Message{UserID: userID, Data: payload})
}

// Publish forwards a lifecycle event to the event's organization
func (h *Hub) Publish(ctx context.Context, evt events.Event) error {
	return h.BroadcastToOrg(ctx, evt.OrganizationID, Envelope{Type: string(evt.Type), Data: evt})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsUserConnected checks if a user has at least one open connection
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}
