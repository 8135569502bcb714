package notify

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "notify").Logger()

const (
	TypeDashboard   = "dashboard"
	TypePaymentOpen = "payment_open"
)

// Message is what clients receive.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

type broadcastMsg struct {
	UserID string
	Data   []byte
}

// Hub fans messages out to every connection of a user.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.UserID] == nil {
				h.rooms[c.UserID] = make(map[*Client]bool)
			}
			h.rooms[c.UserID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.UserID] {
				select {
				case c.Send <- m.Data:
				default:
					h.remove(c)
				}
			}
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for _, conns := range h.rooms {
				for c := range conns {
					h.remove(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(c *Client) {
	conns := h.rooms[c.UserID]
	if conns == nil || !conns[c] {
		return
	}
	delete(conns, c)
	close(c.Send)
	if len(conns) == 0 {
		delete(h.rooms, c.UserID)
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func encode(typ string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: typ, Data: data, Timestamp: time.Now().Unix()})
}

// deliver queues payload for every connection of userID. It never blocks the
// caller; messages are dropped when the hub is backed up or stopped.
func (h *Hub) deliver(userID string, payload []byte) {
	select {
	case h.broadcast <- broadcastMsg{UserID: userID, Data: payload}:
	case <-h.stop:
	default:
		logger.Warn().Msgf("Notification for user %s dropped", userID)
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Serve upgrades the request and streams userID's notifications until the
// connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{
		Conn:   conn,
		Send:   make(chan []byte, 32),
		UserID: userID,
	}

	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return nil
	}
	go writePump(client)
	go readPump(client, h)
	return nil
}

func writePump(c *Client) {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

// readPump only watches for the close; clients never send anything we act on.
func readPump(c *Client, h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
