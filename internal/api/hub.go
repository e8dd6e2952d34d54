// ABOUTME: Websocket hub fanning fleet notification signals out to subscribers.
// ABOUTME: Implements fleet.Notifier; delivery is best-effort, slow clients are dropped.

package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wardenlabs/minefleet/internal/gameclient"
)

const (
	hubSendBuffer   = 16
	hubWriteWait    = 5 * time.Second
	hubPingInterval = 30 * time.Second
)

// Signal is one notification frame sent to event-feed subscribers.
type Signal struct {
	Type     string    `json:"type"` // connected|disconnected|error|warning|final|chat
	BotID    string    `json:"bot_id"`
	Count    int       `json:"count,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Speaker  string    `json:"speaker,omitempty"`
	Text     string    `json:"text,omitempty"`
	Server   string    `json:"server,omitempty"`
	Username string    `json:"username,omitempty"`
	Edition  string    `json:"edition,omitempty"`
	Time     time.Time `json:"time"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan Signal
}

// Hub tracks event-feed subscribers and broadcasts fleet signals to them.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger.With("component", "event-hub"),
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeWS upgrades the request and streams signals until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan Signal, hubSendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("event subscriber joined", "subscribers", total)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames; its job is detecting the close.
func (h *Hub) readLoop(c *hubClient) {
	defer h.drop(c)
	c.conn.SetReadLimit(1 << 10)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(hubPingInterval)
	defer ticker.Stop()

	for {
		select {
		case sig, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteJSON(sig); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(hubWriteWait))
		}
	}
}

func (h *Hub) drop(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// broadcast queues a signal on every subscriber, dropping it for clients
// whose buffers are full.
func (h *Hub) broadcast(sig Signal) {
	sig.Time = time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- sig:
		default:
			h.logger.Warn("subscriber buffer full, dropping signal", "type", sig.Type)
		}
	}
}

// Fleet notifier surface.

func (h *Hub) BotConnected(botID string, meta gameclient.SessionMeta) {
	h.broadcast(Signal{
		Type: "connected", BotID: botID,
		Server: meta.Server, Username: meta.Username, Edition: meta.Edition,
	})
}

func (h *Hub) BotDisconnected(botID string) {
	h.broadcast(Signal{Type: "disconnected", BotID: botID})
}

func (h *Hub) BotError(botID, reason string) {
	h.broadcast(Signal{Type: "error", BotID: botID, Reason: reason})
}

func (h *Hub) DisconnectionWarning(botID string, count int) {
	h.broadcast(Signal{Type: "warning", BotID: botID, Count: count})
}

func (h *Hub) DisconnectionFinal(botID string) {
	h.broadcast(Signal{Type: "final", BotID: botID})
}

func (h *Hub) BotChat(botID, speaker, text string) {
	h.broadcast(Signal{Type: "chat", BotID: botID, Speaker: speaker, Text: text})
}
