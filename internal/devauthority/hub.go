package devauthority

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/offpos/internal/remote"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// hub fans change events out to every open stream.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	logger  *slog.Logger
}

type wsClient struct {
	conn   *websocket.Conn
	scopes map[remote.Scope]bool
	send   chan remote.ChangeEvent
	once   sync.Once
}

func newHub(logger *slog.Logger) *hub {
	return &hub{clients: make(map[*wsClient]struct{}), logger: logger}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast never blocks. A client whose buffer is full is dropped and must
// reconnect.
func (h *hub) broadcast(ev remote.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.scopes[ev.Scope] {
			continue
		}
		select {
		case c.send <- ev:
		default:
			h.logger.Warn("dropping slow change subscriber")
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// changes upgrades GET /v1/changes?scope=a,b to a websocket stream.
func (s *Server) changes(w http.ResponseWriter, r *http.Request) {
	scopes := make(map[remote.Scope]bool)
	for _, raw := range splitScopes(r.URL.Query().Get("scope")) {
		switch sc := remote.Scope(raw); sc {
		case remote.ScopeProducts, remote.ScopeSales:
			scopes[sc] = true
		default:
			respondError(w, http.StatusBadRequest, "invalid_scope", "unknown scope "+raw)
			return
		}
	}
	if len(scopes) == 0 {
		scopes[remote.ScopeProducts] = true
		scopes[remote.ScopeSales] = true
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, scopes: scopes, send: make(chan remote.ChangeEvent, sendBuffer)}
	s.hub.add(c)

	go c.readPump(s.hub)
	c.writePump()
}

// writePump is the only writer on conn. It returns when send is closed.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for ev := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}

// readPump discards client frames so control messages are processed, and
// unregisters the client once the peer goes away.
func (c *wsClient) readPump(h *hub) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func splitScopes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
