package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/holohud/internal/hud"
)

// DefaultPushInterval pushes snapshots at about 30 Hz.
const DefaultPushInterval = 33 * time.Millisecond

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SnapshotSource provides the latest HUD snapshot.
type SnapshotSource interface {
	Snapshot() hud.Snapshot
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// StateHandler pushes HUD snapshots to WebSocket clients. A snapshot is sent
// to everyone when it changes, and once to each client on connect.
type StateHandler struct {
	source   SnapshotSource
	interval time.Duration
	log      logrus.FieldLogger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	stop chan struct{}
	once sync.Once
}

// NewStateHandler creates a StateHandler and starts its broadcast loop.
func NewStateHandler(source SnapshotSource, interval time.Duration, log logrus.FieldLogger) *StateHandler {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	h := &StateHandler{
		source:   source,
		interval: interval,
		log:      log,
		clients:  make(map[*wsClient]struct{}),
		stop:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	if msg, err := json.Marshal(h.source.Snapshot()); err == nil {
		if err := client.send(msg); err != nil {
			return
		}
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *StateHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop and disconnects every client.
func (h *StateHandler) Close() {
	h.once.Do(func() {
		close(h.stop)
		h.mu.RLock()
		defer h.mu.RUnlock()
		for c := range h.clients {
			c.conn.Close()
		}
	})
}

func (h *StateHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		snap := h.source.Snapshot()
		if snap.UpdatedAt.Equal(last) {
			continue
		}
		last = snap.UpdatedAt

		msg, err := json.Marshal(snap)
		if err != nil {
			h.log.WithError(err).Error("encode snapshot")
			continue
		}

		h.mu.RLock()
		for c := range h.clients {
			if err := c.send(msg); err != nil {
				c.conn.Close()
			}
		}
		h.mu.RUnlock()
	}
}
