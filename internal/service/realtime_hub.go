package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
)

const (
	realtimeWriteWait  = 10 * time.Second
	realtimePongWait   = 60 * time.Second
	realtimePingPeriod = (realtimePongWait * 9) / 10
)

// RealtimeClient is one websocket subscriber on the class change feed.
type RealtimeClient struct {
	hub    *RealtimeHub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// RealtimeHub fans class change events out to connected subscribers.
type RealtimeHub struct {
	clients    map[*RealtimeClient]struct{}
	register   chan *RealtimeClient
	unregister chan *RealtimeClient
	broadcast  chan []byte
	metrics    *MetricsService
	sendBuffer int
	logger     *zap.Logger
}

// NewRealtimeHub constructs a hub. Run must be started before clients
// attach.
func NewRealtimeHub(metrics *MetricsService, sendBuffer int, logger *zap.Logger) *RealtimeHub {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHub{
		clients:    make(map[*RealtimeClient]struct{}),
		register:   make(chan *RealtimeClient),
		unregister: make(chan *RealtimeClient),
		broadcast:  make(chan []byte, 64),
		metrics:    metrics,
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// Run pumps events to subscribers until the context is cancelled.
func (h *RealtimeHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			if h.metrics != nil {
				h.metrics.RealtimeClientConnected(1)
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if h.metrics != nil {
					h.metrics.RealtimeClientConnected(-1)
				}
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than block the feed.
					delete(h.clients, client)
					close(client.send)
					if h.metrics != nil {
						h.metrics.RealtimeClientConnected(-1)
					}
				}
			}
		}
	}
}

// PublishClassEvent broadcasts a class change to all subscribers.
func (h *RealtimeHub) PublishClassEvent(event models.ClassEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to encode class event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("realtime broadcast buffer full, dropping event",
			zap.String("action", event.Action),
			zap.String("class_id", event.ClassID))
	}
}

// Attach registers the connection and starts its read and write pumps.
func (h *RealtimeHub) Attach(conn *websocket.Conn, userID string) {
	client := &RealtimeClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		userID: userID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *RealtimeClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(realtimePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(realtimePongWait))
	})
	for {
		// The feed is one-way; inbound frames only keep the connection alive.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("realtime client read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *RealtimeClient) writePump() {
	ticker := time.NewTicker(realtimePingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
