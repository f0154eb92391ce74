package socket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client events.
const (
	EventBoardSetID   = "board-set-id"
	EventBoardChanged = "board-changed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frame is the JSON envelope of every socket message.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// IdentityFunc resolves the user behind an upgrade request, or "" for anonymous sockets.
type IdentityFunc func(r *http.Request) string

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	room   string
}

// Hub tracks live sockets, their rooms and their users.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	identify IdentityFunc
}

func NewHub(identify IdentityFunc) *Hub {
	if identify == nil {
		identify = func(*http.Request) string { return "" }
	}
	return &Hub{
		clients:  make(map[*client]struct{}),
		identify: identify,
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
	h.register(c)
	logger.Log.WithField("userID", userID).Info("Socket connected")

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of open sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of sockets in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.room == room {
			n++
		}
	}
	return n
}

// EmitTo sends to the watchers of label, or to everyone when label is empty.
func (h *Hub) EmitTo(eventType string, data interface{}, label string) {
	room := ""
	if label != "" {
		room = "watching:" + label
	}
	h.deliver(eventType, data, func(c *client) bool {
		return room == "" || c.room == room
	})
}

// EmitToUser sends to every socket of userID.
func (h *Hub) EmitToUser(eventType string, data interface{}, userID string) {
	if userID == "" {
		return
	}
	n := h.deliver(eventType, data, func(c *client) bool { return c.userID == userID })
	if n == 0 {
		logger.Log.WithFields(logrus.Fields{"event": eventType, "userID": userID}).Debug("No active socket for user")
	}
}

// Broadcast sends to room, or everyone when room is empty, skipping the sockets of excludeUserID.
func (h *Hub) Broadcast(eventType string, data interface{}, room string, excludeUserID string) {
	h.deliver(eventType, data, func(c *client) bool {
		if excludeUserID != "" && c.userID == excludeUserID {
			return false
		}
		return room == "" || c.room == room
	})
}

func (h *Hub) deliver(eventType string, data interface{}, match func(*client) bool) int {
	msg, err := json.Marshal(outFrame{Type: eventType, Data: data})
	if err != nil {
		logger.Log.WithError(err).WithField("event", eventType).Error("Failed to encode socket frame")
		return 0
	}

	var slow []*client
	sent := 0

	h.mu.RLock()
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- msg:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger.Log.WithField("userID", c.userID).Warn("Dropping slow socket")
		h.unregister(c)
	}
	return sent
}

func (h *Hub) setRoom(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.room = room
}

func (h *Hub) roomOf(c *client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.room
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		logger.Log.WithField("userID", c.userID).Info("Socket disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithError(err).Debug("Socket read error")
			}
			return
		}
		c.handle(frame)
	}
}

func (c *client) handle(frame Frame) {
	switch frame.Type {
	case EventBoardSetID:
		var boardID string
		if err := json.Unmarshal(frame.Data, &boardID); err != nil || boardID == "" {
			return
		}
		if c.hub.roomOf(c) == boardID {
			return
		}
		c.hub.setRoom(c, boardID)
		logger.Log.WithField("room", boardID).Debug("Socket joined board")
	case EventBoardChanged:
		room := c.hub.roomOf(c)
		if room == "" {
			return
		}
		c.hub.Broadcast(EventBoardChanged, frame.Data, room, "")
	default:
		logger.Log.WithField("type", frame.Type).Debug("Unknown socket event")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
