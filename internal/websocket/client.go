package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"logisync-backend/internal/logger"
	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048
)

var errNoFix = errors.New("no location received yet")

// Tracker runs the periodic GPS reporter for a driver
type Tracker interface {
	RunReporter(ctx context.Context, driverID string, source services.LocationSource) error
}

// Client represents a WebSocket client connection
type Client struct {
	ID             string
	UserID         string
	OrganizationID string
	UserRole       string // "driver" or "admin"
	conn           *websocket.Conn
	hub            *Hub
	send           chan []byte
	tracker        Tracker

	mu        sync.Mutex
	closed    bool
	lastFix   *services.LocationInput
	reporting bool
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewClient creates a new WebSocket client
func NewClient(userID, organizationID, userRole string, conn *websocket.Conn, hub *Hub, tracker Tracker) *Client {
	return &Client{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: organizationID,
		UserRole:       userRole,
		conn:           conn,
		hub:            hub,
		send:           make(chan []byte, 256),
		tracker:        tracker,
	}
}

// CurrentLocation returns the latest fix the device streamed
func (c *Client) CurrentLocation(context.Context) (services.LocationInput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFix == nil {
		return services.LocationInput{}, errNoFix
	}
	return *c.lastFix, nil
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	l := logger.Get()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l.Warn("WebSocket read error", zap.String("user_id", c.UserID), zap.Error(err))
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			l.Debug("Invalid WebSocket message", zap.String("user_id", c.UserID), zap.Error(err))
			continue
		}

		switch msg.Type {
		case "ping":
			c.reply(Envelope{Type: "pong", Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)}})

		case "location_update":
			c.handleLocationUpdate(ctx, msg.Data)
		}
	}
}

// reply queues a frame for this connection only; it is dropped if the buffer is full
func (c *Client) reply(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend is called by the hub; the send channel is closed exactly once
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleLocationUpdate keeps the newest fix and makes sure a reporter is sampling it.
// Devices may stream faster than the sample interval; only the latest fix is reported.
func (c *Client) handleLocationUpdate(ctx context.Context, raw json.RawMessage) {
	if c.UserRole != models.RoleDriver || c.tracker == nil {
		return
	}

	var fix services.LocationInput
	if err := json.Unmarshal(raw, &fix); err != nil {
		c.reply(Envelope{Type: "error", Data: map[string]string{"error": "invalid location_update payload"}})
		return
	}

	c.mu.Lock()
	c.lastFix = &fix
	start := !c.reporting
	c.reporting = true
	c.mu.Unlock()

	if start {
		go c.runReporter(ctx)
	}
}

func (c *Client) runReporter(ctx context.Context) {
	err := c.tracker.RunReporter(ctx, c.UserID, c)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Get().Warn("GPS reporter stopped", zap.String("user_id", c.UserID), zap.Error(err))
	}

	c.mu.Lock()
	c.reporting = false
	c.mu.Unlock()

	if err != nil {
		return
	}

	// The session is per driver, so every device the driver has open needs the notice
	notice := Envelope{Type: "tracking_required", Data: map[string]string{"error": services.ErrTrackingRequired.Error()}}
	if err := c.hub.BroadcastToUser(ctx, c.UserID, notice); err != nil {
		c.reply(notice)
	}
}
