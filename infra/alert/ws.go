package alert

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsMessage is the wire format delivered to websocket clients.
type wsMessage struct {
	Channel   string    `json:"channel"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// subscribeRequest is the only client-to-server message the hub accepts.
type subscribeRequest struct {
	Channels []string `json:"channels"`
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]bool
	mu       sync.RWMutex

	// sendMu guards send and closed together so that an enqueue can never
	// race the close, even from a publisher holding a stale client snapshot.
	sendMu sync.Mutex
	closed bool
}

// enqueue offers the payload to the client's send buffer. It reports whether
// the payload was accepted and whether the client is still open.
func (c *wsClient) enqueue(data []byte) (sent, open bool) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- data:
		return true, true
	default:
		return false, true
	}
}

// shutdown closes the send channel exactly once, under the same mutex that
// guards enqueues.
func (c *wsClient) shutdown() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.sendMu.Unlock()
	_ = c.conn.Close()
}

// WSHub fans alert events out to connected websocket clients. Clients pick
// the channels they care about with a subscribe message; a client with no
// subscriptions receives everything. Slow clients are disconnected rather
// than allowed to stall delivery.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	log     logger.Logger
}

// NewWSHub creates an empty hub.
func NewWSHub(log logger.Logger) *WSHub {
	return &WSHub{clients: make(map[*wsClient]bool), log: log}
}

// ServeHTTP upgrades the request and registers the client.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{
		conn:     conn,
		send:     make(chan []byte, 64),
		channels: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	go h.writePump(client)
	go h.readPump(client)
}

func (h *WSHub) readPump(c *wsClient) {
	defer h.drop(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		c.mu.Lock()
		for _, ch := range req.Channels {
			c.channels[ch] = true
		}
		c.mu.Unlock()
	}
}

func (h *WSHub) writePump(c *wsClient) {
	defer h.drop(c)
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (h *WSHub) drop(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.shutdown()
}

// Publish implements alert.Broadcaster.
func (h *WSHub) Publish(channel string, event any) {
	data, err := json.Marshal(wsMessage{Channel: channel, Payload: event, Timestamp: time.Now()})
	if err != nil {
		h.log.Errorf("websocket marshal on %s: %v", channel, err)
		return
	}
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.mu.RLock()
		interested := len(c.channels) == 0 || c.channels[channel]
		c.mu.RUnlock()
		if !interested {
			continue
		}
		sent, open := c.enqueue(data)
		if sent || !open {
			continue
		}
		h.log.Warnf("websocket client too slow, dropping connection")
		h.drop(c)
	}
}

// Close disconnects every client.
func (h *WSHub) Close() error {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.drop(c)
	}
	return nil
}
