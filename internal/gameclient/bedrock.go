// ABOUTME: Bedrock edition adapter speaking a JSON message protocol over websocket.
// ABOUTME: Mirrors the Java adapter's lifecycle: login, keep-alive, kick decoding, chat.

package gameclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// bedrockVersions is the set of Bedrock version strings the adapter accepts.
var bedrockVersions = map[string]bool{
	"1.21.94": true,
	"1.21.93": true,
	"1.21.90": true,
	"1.21.70": true,
	"1.21.50": true,
}

const (
	bedrockReadLimit    = 1 << 20
	bedrockPingInterval = 10 * time.Second
	bedrockPongWait     = 30 * time.Second
	bedrockWriteWait    = 5 * time.Second
)

// bedrockMessage is one frame of the Bedrock bridge protocol.
type bedrockMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Version  string `json:"version,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
	Text     string `json:"text,omitempty"`
	Command  string `json:"command,omitempty"`
}

// BedrockClient implements Client for Bedrock edition servers over websocket.
type BedrockClient struct {
	cfg            Config
	connectTimeout time.Duration
	logger         *slog.Logger
	events         chan Event

	mu          sync.Mutex
	conn        *websocket.Conn
	connected   bool
	connectedAt time.Time
	closing     bool
	pingStop    chan struct{}

	wmu sync.Mutex // serializes websocket writes
}

// NewBedrockClient creates a Bedrock edition adapter. Connect establishes
// the session.
func NewBedrockClient(cfg Config, connectTimeout time.Duration) *BedrockClient {
	return &BedrockClient{
		cfg:            cfg,
		connectTimeout: connectTimeout,
		logger:         slog.Default().With("component", "gameclient", "edition", "bedrock", "server", cfg.Addr()),
		events:         make(chan Event, eventBufferSize),
	}
}

// Events returns the adapter's lifecycle event channel. The channel persists
// across reconnect cycles of the same client.
func (c *BedrockClient) Events() <-chan Event {
	return c.events
}

func (c *BedrockClient) wsURL() string {
	return fmt.Sprintf("ws://%s/session", c.cfg.Addr())
}

// Connect dials the server and sends the login frame. Login confirmation,
// kicks, and chat arrive via Events.
func (c *BedrockClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.mu.Unlock()

	if !bedrockVersions[c.cfg.Version] {
		return fmt.Errorf("unsupported bedrock version %q", c.cfg.Version)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.connectTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.wsURL(), err)
	}

	conn.SetReadLimit(bedrockReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(bedrockPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(bedrockPongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.writeMessage(bedrockMessage{
		Type:     "login",
		Username: c.cfg.Username,
		Version:  c.cfg.Version,
	}); err != nil {
		c.teardown()
		return fmt.Errorf("login: %w", err)
	}

	c.startPing(conn)
	go c.readLoop(conn)
	return nil
}

// startPing keeps the websocket alive with control pings.
func (c *BedrockClient) startPing(conn *websocket.Conn) {
	c.mu.Lock()
	stop := make(chan struct{})
	c.pingStop = stop
	c.mu.Unlock()

	go func() {
		t := time.NewTicker(bedrockPingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.wmu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(bedrockWriteWait))
				c.wmu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// readLoop consumes server frames until the connection drops. It runs in
// its own goroutine for the lifetime of one session.
func (c *BedrockClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		var msg bedrockMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("discarding malformed frame", "error", err)
			continue
		}

		switch msg.Type {
		case "login_ok", "spawn":
			c.mu.Lock()
			already := c.connected
			c.connected = true
			if !already {
				c.connectedAt = time.Now()
			}
			c.mu.Unlock()
			if already {
				continue
			}

			c.logger.Info("joined server", "username", c.cfg.Username)
			c.emit(Event{Type: EventConnected, Meta: SessionMeta{
				Server:   c.cfg.Addr(),
				Username: c.cfg.Username,
				Version:  c.cfg.Version,
				Edition:  "bedrock",
			}})

		case "kick":
			reason := msg.Reason
			if reason == "" {
				reason = "kicked"
			}
			c.logger.Warn("kicked from server", "reason", reason)
			c.teardown()
			c.emit(Event{Type: EventKicked, Reason: reason, ServerDown: ServerDown(reason)})
			return

		case "chat":
			c.emit(Event{Type: EventChat, Speaker: msg.Speaker, Text: msg.Text})
		}
	}
}

// handleReadError ends the session when the read loop fails. A teardown
// initiated by Disconnect/ForceDisconnect stays silent.
func (c *BedrockClient) handleReadError(err error) {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()

	c.teardown()
	if closing {
		return
	}
	c.emit(Event{Type: EventDisconnected, Reason: err.Error()})
}

// Disconnect closes the session gracefully; the teardown emits no events.
func (c *BedrockClient) Disconnect() {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.wmu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(bedrockWriteWait))
		c.wmu.Unlock()
	}
	c.teardown()
	c.logger.Info("disconnected", "username", c.cfg.Username)
}

// ForceDisconnect tears the session down immediately without the close
// handshake.
func (c *BedrockClient) ForceDisconnect() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.teardown()
}

// teardown closes the connection and clears session state.
func (c *BedrockClient) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.connectedAt = time.Time{}
}

// IsAlive reports whether the client holds an established session.
func (c *BedrockClient) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil
}

// SendMessage sends a chat message. Returns false when not connected.
func (c *BedrockClient) SendMessage(text string) bool {
	if !c.IsAlive() {
		return false
	}
	if err := c.writeMessage(bedrockMessage{Type: "chat", Text: text}); err != nil {
		c.logger.Warn("sending chat failed", "error", err)
		return false
	}
	return true
}

// ExecuteCommand runs a slash command. The leading slash is implied.
func (c *BedrockClient) ExecuteCommand(cmd string) bool {
	if !c.IsAlive() {
		return false
	}
	if err := c.writeMessage(bedrockMessage{Type: "command", Command: cmd}); err != nil {
		c.logger.Warn("sending command failed", "error", err)
		return false
	}
	return true
}

// Info returns a runtime snapshot; a minimal record with Connected=false
// when the session is down.
func (c *BedrockClient) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{
		Connected: c.connected,
		Username:  c.cfg.Username,
		Server:    c.cfg.Addr(),
		Version:   c.cfg.Version,
		Edition:   "bedrock",
	}
	if c.connected {
		info.ConnectedAt = c.connectedAt
		info.Uptime = time.Since(c.connectedAt)
	}
	return info
}

// emit delivers an event without blocking the read loop.
func (c *BedrockClient) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event channel full, dropping event", "type", ev.Type)
	}
}

func (c *BedrockClient) writeMessage(msg bedrockMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(bedrockWriteWait))
	return conn.WriteJSON(msg)
}
