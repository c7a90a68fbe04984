package hub

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vidshare/internal/logging"
	"vidshare/internal/metrics"
)

var errSlowClient = errors.New("subscriber send queue full")

// Config tunes websocket connections.
type Config struct {
	// PingInterval is how often the server pings idle clients.
	PingInterval time.Duration
	// PongWait is how long a client may stay silent before it is dropped.
	PongWait time.Duration
	// WriteWait bounds each frame write.
	WriteWait time.Duration
	// SendBuffer is the per-connection queue length.
	SendBuffer int
}

// DefaultConfig returns the production connection settings.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		SendBuffer:   32,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	return c
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Status carries nothing private; embeds on other origins may watch it.
	CheckOrigin: func(*http.Request) bool { return true },
}

type inboundMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ServeWS upgrades the request and serves the subscription protocol:
// clients send {"type":"subscribe","id":...} or {"type":"unsubscribe",
// "id":...} and receive status messages. An "id" query parameter
// subscribes at connect time.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		hub:  h,
		ws:   ws,
		send: make(chan Message, h.config.SendBuffer),
		done: make(chan struct{}),
	}
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	h.clientsMu.Unlock()
	metrics.HubConnections.Inc()
	logging.Debug("WebSocket connected from %s", r.RemoteAddr)

	go c.writeLoop()

	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		h.Subscribe(c, id)
	}
	c.readLoop()
}

type client struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan Message
	done chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// Send queues msg without blocking. A full queue closes the connection so
// the peer sees the drop instead of silently missing a transition.
func (c *client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		// Callers may hold the hub lock, which close needs.
		go c.close()
		return errSlowClient
	}
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *client) readLoop() {
	defer c.close()

	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.config.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.config.PongWait))
	})

	for {
		var msg inboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read error: %v", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.config.PongWait))
		if c.isClosed() {
			return
		}

		id := strings.TrimSpace(msg.ID)
		switch {
		case id == "" && (msg.Type == "subscribe" || msg.Type == "unsubscribe"):
			c.sendError("id required")
		case msg.Type == "subscribe":
			c.hub.Subscribe(c, id)
		case msg.Type == "unsubscribe":
			c.hub.Unsubscribe(c, id)
		default:
			c.sendError("unknown command")
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.hub.config.WriteWait))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				logging.Debug("WebSocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.hub.config.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (c *client) sendError(message string) {
	if err := c.Send(Message{Type: TypeError, Error: message}); err != nil {
		logging.Debug("Dropping error message: %v", err)
	}
}

// close runs once per connection regardless of which loop noticed the
// failure first. The closed flag is set before the hub forgets the
// connection, so a racing Subscribe either sees ErrClosed or is undone by
// Closed.
func (c *client) close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.done)
		c.mu.Unlock()

		c.hub.Closed(c)
		c.hub.clientsMu.Lock()
		delete(c.hub.clients, c)
		c.hub.clientsMu.Unlock()

		// Give the writer a moment to send the close frame.
		time.AfterFunc(time.Second, func() { _ = c.ws.Close() })
		metrics.HubConnections.Dec()
	})
}

// Shutdown closes every open websocket connection.
func (h *Hub) Shutdown() {
	h.clientsMu.Lock()
	open := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		open = append(open, c)
	}
	h.clientsMu.Unlock()

	for _, c := range open {
		c.close()
	}
	if len(open) > 0 {
		logging.Info("Closed %d websocket connection(s)", len(open))
	}
}

// Connections returns the number of open websocket connections.
func (h *Hub) Connections() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}
