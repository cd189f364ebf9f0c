package main

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ServerEvent is one push frame. Event names are part of the client
// contract: NewLike, NewMatch, NewMessage.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const (
	EventNewLike    = "NewLike"
	EventNewMatch   = "NewMatch"
	EventNewMessage = "NewMessage"
)

// Client represents one live WebSocket connection bound to a user.
// A user can hold several at once (multiple devices).
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan ServerEvent
}

// Hub maps user ids to their live connections. It is the only shared
// mutable in-process state; everything else lives in the database.
type Hub struct {
	clientsByUser map[int]map[*Client]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[int]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

// notify fans an event out to every live connection of userID.
// Best-effort: no live connection means the event is dropped,
// a full client buffer skips that client. Durable state has already
// committed before notify is called, so nothing here can fail the
// originating mutation.
func (h *Hub) notify(userID int, event string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if peers, ok := h.clientsByUser[userID]; ok {
		evt := ServerEvent{Event: event, Data: data}
		for c := range peers {
			select {
			case c.send <- evt:
			default:
				// Drop event if this client's buffer is full
			}
		}
	}
}

// connectionCount reports how many live connections userID holds.
func (h *Hub) connectionCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev frontends connect cross-origin (Next.js :3000, Expo web :19006)
	CheckOrigin: func(r *http.Request) bool { return true },
}

// global hub
var matchHub = newHub()

// GET /ws/match: upgrades to WebSocket and binds the verified identity
// to the connection. The server only pushes; inbound frames are read
// and discarded to service pings and detect closure.
func wsMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan ServerEvent, 16),
		}
		matchHub.register(client)

		// Announce connection to this client
		client.send <- ServerEvent{Event: "info", Data: "connected"}

		// Start writer
		go clientWriter(client)
		// Start reader (blocks)
		clientReader(client)
	}
}

func clientReader(c *Client) {
	defer func() {
		matchHub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		// Messages are sent over REST; client frames carry nothing.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func clientWriter(c *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
