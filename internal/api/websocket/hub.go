package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/scoring"
)

// Message types pushed to viewers.
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeError    = "error"
)

const (
	// DefaultLastTTL bounds how long a match's last snapshot is kept for late
	// viewers once broadcasts for it stop.
	DefaultLastTTL = 2 * time.Hour

	sweepInterval = time.Minute
)

// Message is one frame sent to a viewer.
type Message struct {
	Type      string      `json:"type"`
	MatchID   string      `json:"match_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active viewers and fans snapshots out to those
// watching the snapshot's match.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	lastMu  sync.RWMutex
	last    map[string]Message
	lastTTL time.Duration

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *log.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		last:       make(map[string]Message),
		lastTTL:    DefaultLastTTL,
		broadcast:  make(chan Message, 1000),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Println("✓ Hub started")
	defer close(h.done)

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case now := <-sweep.C:
			h.sweepLast(now)

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

// Register adds a client to the hub. Once the hub has stopped the client's
// send channel is closed so its write pump exits.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastSnapshot queues snap for every viewer of its match.
func (h *Hub) BroadcastSnapshot(snap scoring.Snapshot) {
	if snap.Match == nil {
		return
	}
	msg := Message{
		Type:      MessageTypeSnapshot,
		MatchID:   snap.Match.ID,
		Payload:   snap,
		Timestamp: time.Now(),
	}

	// a finished match gets no more updates, so late viewers are not replayed
	h.lastMu.Lock()
	if snap.Match.Status == matchscore.StatusCompleted {
		delete(h.last, msg.MatchID)
	} else {
		h.last[msg.MatchID] = msg
	}
	h.lastMu.Unlock()

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Println("⚠️  Broadcast buffer full, dropping message")
	}
}

// SnapshotHook returns a listener that broadcasts every applied snapshot.
func (h *Hub) SnapshotHook() func(scoring.Snapshot) {
	return h.BroadcastSnapshot
}

// Last returns the most recent snapshot message broadcast for matchID.
func (h *Hub) Last(matchID string) (Message, bool) {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	msg, ok := h.last[matchID]
	return msg, ok
}

func (h *Hub) sweepLast(now time.Time) {
	h.lastMu.Lock()
	defer h.lastMu.Unlock()
	for id, msg := range h.last {
		if now.Sub(msg.Timestamp) > h.lastTTL {
			delete(h.last, id)
		}
	}
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.logger.Printf("viewer %s watching match %s (total: %d)", c.ID, c.MatchID, len(h.clients))
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Printf("viewer %s disconnected (total: %d)", c.ID, len(h.clients))
	}
}

func (h *Hub) broadcastMessage(msg Message) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.MatchID == msg.MatchID {
			clients = append(clients, c)
		}
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if !c.TrySend(msg) {
			h.logger.Printf("⚠️  viewer %s buffer full, disconnecting", c.ID)
			go h.Unregister(c)
		}
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Printf("Shutting down hub (%d active clients)", len(h.clients))
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
