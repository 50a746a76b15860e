package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/marketscan/backend/internal/scanner"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

const (
	sendBuffer   = 64
	pingInterval = 45 * time.Second
	readTimeout  = 90 * time.Second
	writeTimeout = 10 * time.Second
)

// SnapshotFunc returns the cached view of a universe ("" = active one)
type SnapshotFunc func(universeID string) (scanner.View, error)

type client struct {
	conn   *websocket.Conn
	out    chan interface{}
	done   chan struct{}
	paused atomic.Bool

	mu       sync.RWMutex
	universe string // "" receives every universe
}

func (c *client) wants(universeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.universe == "" || c.universe == universeID
}

func (c *client) setUniverse(id string) {
	c.mu.Lock()
	c.universe = id
	c.mu.Unlock()
}

// send never blocks; a slow client drops messages
func (c *client) send(v interface{}) bool {
	select {
	case c.out <- v:
		return true
	default:
		return false
	}
}

// Hub fans scan results out to websocket clients
// ⭐ SSOT: every push to browsers goes through the hub
type Hub struct {
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub; snapshot may be nil
func NewHub(snapshot SnapshotFunc, log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:       func(*http.Request) bool { return true },
			EnableCompression: true,
		},
		snapshot: snapshot,
		logger:   log.Component("realtime"),
		clients:  make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish is a scan subscriber
func (h *Hub) Publish(result scanner.Result) {
	msg := NewScanMessage(result)

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		if c.paused.Load() || !c.wants(msg.UniverseID) {
			continue
		}
		if !c.send(msg) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.WithField("dropped", dropped).Warn("Slow websocket clients skipped a scan message")
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

// ServeWS upgrades the request and streams scan messages.
// The optional ?universe= query narrows the stream to one universe.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	cl := &client{
		conn:     conn,
		out:      make(chan interface{}, sendBuffer),
		done:     make(chan struct{}),
		universe: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("universe"))),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	defer func() {
		close(cl.done)
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
	}()

	go h.writeLoop(cl)

	cl.send(status("info", "Connected"))
	h.sendSnapshot(cl)

	h.readLoop(cl)
}

func (h *Hub) sendSnapshot(cl *client) {
	if h.snapshot == nil {
		return
	}
	cl.mu.RLock()
	id := cl.universe
	cl.mu.RUnlock()

	view, err := h.snapshot(id)
	if err != nil {
		cl.send(status("error", err.Error()))
		return
	}
	cl.send(SnapshotMessage{Type: TypeSnapshot, View: view})
}

func (h *Hub) writeLoop(cl *client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case v := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteJSON(v); err != nil {
				return
			}
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}

func (h *Hub) readLoop(cl *client) {
	_ = cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		mt, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var ctrl ControlMessage
		if err := json.Unmarshal(data, &ctrl); err != nil || ctrl.Type != "control" {
			continue
		}

		switch strings.ToLower(ctrl.Action) {
		case "pause":
			cl.paused.Store(true)
			cl.send(status("info", "Paused"))
		case "resume":
			cl.paused.Store(false)
			cl.send(status("success", "Resumed"))
			h.sendSnapshot(cl)
		case "subscribe":
			cl.setUniverse(strings.ToUpper(strings.TrimSpace(ctrl.Universe)))
			h.sendSnapshot(cl)
		default:
			cl.send(status("warning", "Unknown action "+ctrl.Action))
		}
	}
}
