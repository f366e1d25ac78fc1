// Package realtime pushes stored notifications to connected websocket clients.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-backend/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Event is the payload written to the socket.
type Event struct {
	Type          string  `json:"type"`
	ID            uint64  `json:"id"`
	Kind          string  `json:"kind"`
	Message       string  `json:"message"`
	TransactionID *string `json:"transactionId,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

type client struct {
	uid  string
	send chan []byte
}

// Hub fans notifications out to every socket a user has open. A slow client
// whose buffer is full misses the event; it can still poll the inbox.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: map[string]map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) Publish(userUID string, n model.Notification) {
	payload, err := json.Marshal(Event{
		Type:          "notification",
		ID:            n.ID,
		Kind:          n.Type,
		Message:       n.Message,
		TransactionID: n.TransactionID,
		CreatedAt:     n.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userUID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping realtime event for slow client", slog.String("uid", userUID), slog.Uint64("notification.id", n.ID))
		}
	}
}

// Connected reports how many sockets uid has open.
func (h *Hub) Connected(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[uid])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.uid]
	if !ok {
		set = map[*client]struct{}{}
		h.clients[c.uid] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.uid]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.uid)
		}
	}
}

// Serve upgrades an authenticated request and streams the caller's events
// until the socket closes.
func (h *Hub) Serve(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing uid")
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	cl := &client{uid: uid, send: make(chan []byte, sendBuffer)}
	h.register(cl)

	go h.writeLoop(conn, cl)
	h.readLoop(conn, cl)
	return nil
}

func (h *Hub) readLoop(conn *websocket.Conn, cl *client) {
	defer func() {
		h.unregister(cl)
		_ = conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
