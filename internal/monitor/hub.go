// ABOUTME: WebSocket fan-out of telemetry reports
// ABOUTME: Each client gets its own bounded queue and writer goroutine
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/pcmlink/pkg/pcmlink"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	clientQueue   = 16
)

// Hub pushes every published report to connected WebSocket clients
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	log *logrus.Entry
}

type client struct {
	conn     *websocket.Conn
	sendChan chan []byte
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.sendChan)
	})
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// read-only telemetry for trusted local networks
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		log:     logrus.WithField("component", "monitor"),
	}
}

// ServeHTTP upgrades the request and streams reports until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, sendChan: make(chan []byte, clientQueue)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debugf("Telemetry client connected from %s", r.RemoteAddr)

	go h.clientWriter(c)
	h.clientReader(c)

	h.remove(c)
	h.log.Debugf("Telemetry client %s disconnected", r.RemoteAddr)
}

// clientReader discards incoming messages and returns when the client goes away
func (h *Hub) clientReader(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugf("Telemetry client read error: %v", err)
			}
			return
		}
	}
}

// clientWriter sends queued reports and keepalive pings
func (h *Hub) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case data, ok := <-c.sendChan:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debugf("Error writing telemetry: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Publish queues report for every client. Slow clients miss reports rather
// than delaying others.
func (h *Hub) Publish(report pcmlink.Report) {
	data, err := json.Marshal(report)
	if err != nil {
		h.log.Warnf("Error marshaling report: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.sendChan <- data:
		default:
		}
	}
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
