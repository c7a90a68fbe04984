package hub

import (
	"errors"
	"sync"

	"vidshare/internal/jobs"
	"vidshare/internal/logging"
	"vidshare/internal/metrics"
)

// Source supplies current job state.
type Source interface {
	Get(id string) (jobs.Job, bool)
}

// ErrClosed is returned by Conn.Send once the connection has closed.
// Closed must be called after Send starts returning it.
var ErrClosed = errors.New("subscriber closed")

// Conn is one subscriber. Send must not block; a full or closed
// connection returns an error instead.
type Conn interface {
	Send(Message) error
}

// Message is what the hub pushes to subscribers.
type Message struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Job   any    `json:"job,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	TypeStatus = "status"
	TypeError  = "error"
)

// Hub fans job state out to subscribers keyed by media id. A connection
// may subscribe to any number of ids.
type Hub struct {
	source Source
	config Config

	mu    sync.RWMutex
	subs  map[string]map[Conn]struct{}
	conns map[Conn]map[string]struct{}

	clientsMu sync.Mutex
	clients   map[*client]struct{}
}

// New creates a Hub reading job state from source.
func New(source Source, config Config) *Hub {
	return &Hub{
		source:  source,
		config:  config.withDefaults(),
		subs:    make(map[string]map[Conn]struct{}),
		conns:   make(map[Conn]map[string]struct{}),
		clients: make(map[*client]struct{}),
	}
}

// Subscribe registers c for id and immediately sends it the current state,
// so a late subscriber never misses the state it joined in. A connection
// whose Send reports ErrClosed is not registered.
func (h *Hub) Subscribe(c Conn, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := c.Send(h.status(id)); err != nil {
		metrics.HubSendFailures.Inc()
		if errors.Is(err, ErrClosed) {
			return
		}
		logging.Debug("Dropping status for %s: %v", id, err)
	} else {
		metrics.HubMessagesSent.Inc()
	}

	if h.subs[id] == nil {
		h.subs[id] = make(map[Conn]struct{})
	}
	if _, ok := h.subs[id][c]; !ok {
		h.subs[id][c] = struct{}{}
		metrics.HubSubscriptions.Inc()
	}
	if h.conns[c] == nil {
		h.conns[c] = make(map[string]struct{})
	}
	h.conns[c][id] = struct{}{}
}

// Unsubscribe removes c from id's set. Unknown pairs are ignored.
func (h *Hub) Unsubscribe(c Conn, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, id)
}

// Publish pushes the current state of id to every subscriber. Failures
// for one recipient do not affect the others.
func (h *Hub) Publish(id string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	recipients := h.subs[id]
	if len(recipients) == 0 {
		return
	}
	msg := h.status(id)
	for c := range recipients {
		h.deliver(c, msg)
	}
}

// Closed drops c from every subscription set.
func (h *Hub) Closed(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.conns[c] {
		h.removeLocked(c, id)
	}
	delete(h.conns, c)
}

// Subscribers returns the number of connections subscribed to id.
func (h *Hub) Subscribers(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[id])
}

func (h *Hub) removeLocked(c Conn, id string) {
	set := h.subs[id]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, id)
	}
	if ids := h.conns[c]; ids != nil {
		delete(ids, id)
	}
	metrics.HubSubscriptions.Dec()
}

// status builds the state message for id. Caller holds mu; Source.Get
// takes its own lock and never calls back into the hub.
func (h *Hub) status(id string) Message {
	if job, ok := h.source.Get(id); ok {
		return Message{Type: TypeStatus, ID: id, Job: job}
	}
	return Message{Type: TypeStatus, ID: id, Job: jobs.None(id)}
}

func (h *Hub) deliver(c Conn, msg Message) {
	if err := c.Send(msg); err != nil {
		metrics.HubSendFailures.Inc()
		logging.Debug("Dropping status for %s: %v", msg.ID, err)
		return
	}
	metrics.HubMessagesSent.Inc()
}
