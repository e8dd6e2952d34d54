// ABOUTME: Java edition adapter speaking the varint-framed TCP protocol in offline mode.
// ABOUTME: Handles handshake/login, keep-alive echo, disconnect decoding, and chat packets.

package gameclient

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// protocolNumbers maps supported Java version strings to protocol numbers.
var protocolNumbers = map[string]int32{
	"1.21.8": 772,
	"1.21.7": 772,
	"1.21.6": 771,
	"1.21.5": 770,
	"1.21.4": 769,
}

// Packet ids for the modern Java protocol. Exhaustive game-protocol coverage
// is a non-goal; this set is what presence, kicks, and chat need.
const (
	handshakePacket = 0x00

	loginStartPacket      = 0x00
	loginDisconnectPacket = 0x00
	loginSuccessPacket    = 0x02
	setCompressionPacket  = 0x03

	playKeepAliveClientbound = 0x26
	playKeepAliveServerbound = 0x18
	playDisconnectPacket     = 0x1D
	playSystemChatPacket     = 0x6C
	playChatMessagePacket    = 0x06
	playChatCommandPacket    = 0x05
)

// Connection states after the handshake.
const (
	stateLogin = iota
	statePlay
)

// JavaClient implements Client for Java edition servers over raw TCP.
type JavaClient struct {
	cfg            Config
	connectTimeout time.Duration
	logger         *slog.Logger
	events         chan Event

	mu          sync.Mutex
	conn        net.Conn
	state       int
	connected   bool
	connectedAt time.Time
	closing     bool
	compression int32 // threshold; negative means disabled

	wmu sync.Mutex // serializes packet writes
}

// NewJavaClient creates a Java edition adapter. Connect establishes the session.
func NewJavaClient(cfg Config, connectTimeout time.Duration) *JavaClient {
	return &JavaClient{
		cfg:            cfg,
		connectTimeout: connectTimeout,
		logger:         slog.Default().With("component", "gameclient", "edition", "java", "server", cfg.Addr()),
		events:         make(chan Event, eventBufferSize),
		compression:    -1,
	}
}

// Events returns the adapter's lifecycle event channel. The channel persists
// across reconnect cycles of the same client.
func (c *JavaClient) Events() <-chan Event {
	return c.events
}

// Connect dials the server and performs the offline-mode handshake and login
// start. Later lifecycle (login success, kick, disconnect) arrives via Events.
func (c *JavaClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.compression = -1
	c.state = stateLogin
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr())
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.cfg.Addr(), err)
	}

	proto, ok := protocolNumbers[c.cfg.Version]
	if !ok {
		conn.Close()
		return fmt.Errorf("unsupported java version %q", c.cfg.Version)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.sendHandshake(proto); err != nil {
		c.teardown()
		return fmt.Errorf("handshake: %w", err)
	}
	if err := c.sendLoginStart(); err != nil {
		c.teardown()
		return fmt.Errorf("login start: %w", err)
	}

	go c.readLoop(conn)
	return nil
}

func (c *JavaClient) sendHandshake(proto int32) error {
	var buf bytes.Buffer
	writeVarInt(&buf, handshakePacket)
	writeVarInt(&buf, proto)
	writeString(&buf, c.cfg.Host)
	binary.Write(&buf, binary.BigEndian, uint16(c.cfg.Port))
	writeVarInt(&buf, 2) // next state: login
	return c.writeFrame(buf.Bytes())
}

func (c *JavaClient) sendLoginStart() error {
	var buf bytes.Buffer
	writeVarInt(&buf, loginStartPacket)
	writeString(&buf, c.cfg.Username)
	buf.Write(offlineUUID(c.cfg.Username))
	return c.writeFrame(buf.Bytes())
}

// readLoop consumes server packets until the connection drops. It runs in
// its own goroutine for the lifetime of one session.
func (c *JavaClient) readLoop(conn net.Conn) {
	for {
		payload, err := c.readFrame(conn)
		if err != nil {
			c.handleReadError(err)
			return
		}

		r := bytes.NewReader(payload)
		id, err := readVarInt(r)
		if err != nil {
			continue
		}

		c.mu.Lock()
		state := c.state
		c.mu.Unlock()

		if state == stateLogin {
			if done := c.handleLoginPacket(id, r); done {
				return
			}
			continue
		}
		c.handlePlayPacket(id, r)
	}
}

// handleLoginPacket processes a login-state packet. Returns true when the
// read loop should exit (disconnect during login).
func (c *JavaClient) handleLoginPacket(id int32, r *bytes.Reader) bool {
	switch id {
	case loginDisconnectPacket:
		reason := "disconnected during login"
		if s, err := readString(r); err == nil {
			reason = decodeTextComponent(s)
		}
		c.logger.Warn("login rejected", "reason", reason)
		c.teardown()
		c.emit(Event{Type: EventKicked, Reason: reason, ServerDown: ServerDown(reason)})
		return true

	case setCompressionPacket:
		if threshold, err := readVarInt(r); err == nil {
			c.mu.Lock()
			c.compression = threshold
			c.mu.Unlock()
		}

	case loginSuccessPacket:
		c.mu.Lock()
		c.state = statePlay
		c.connected = true
		c.connectedAt = time.Now()
		c.mu.Unlock()

		c.logger.Info("joined server", "username", c.cfg.Username)
		c.emit(Event{Type: EventConnected, Meta: SessionMeta{
			Server:   c.cfg.Addr(),
			Username: c.cfg.Username,
			Version:  c.cfg.Version,
			Edition:  "java",
		}})
	}
	return false
}

// handlePlayPacket processes a play-state packet. Unknown ids are ignored.
func (c *JavaClient) handlePlayPacket(id int32, r *bytes.Reader) {
	switch id {
	case playKeepAliveClientbound:
		var nonce int64
		if err := binary.Read(r, binary.BigEndian, &nonce); err != nil {
			return
		}
		var buf bytes.Buffer
		writeVarInt(&buf, playKeepAliveServerbound)
		binary.Write(&buf, binary.BigEndian, nonce)
		if err := c.writeFrame(buf.Bytes()); err != nil {
			c.logger.Warn("keep-alive echo failed", "error", err)
		}

	case playDisconnectPacket:
		reason := "disconnected"
		if s, err := readString(r); err == nil {
			reason = decodeTextComponent(s)
		}
		c.logger.Warn("kicked from server", "reason", reason)
		c.teardown()
		c.emit(Event{Type: EventKicked, Reason: reason, ServerDown: ServerDown(reason)})

	case playSystemChatPacket:
		if s, err := readString(r); err == nil {
			c.emit(Event{Type: EventChat, Speaker: "server", Text: decodeTextComponent(s)})
		}
	}
}

// handleReadError ends the session when the read loop fails. A teardown
// initiated by Disconnect/ForceDisconnect stays silent.
func (c *JavaClient) handleReadError(err error) {
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
func (c *JavaClient) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.teardown()
	c.logger.Info("disconnected", "username", c.cfg.Username)
}

// ForceDisconnect tears the session down immediately. Any close error is
// swallowed: the caller's job at that point is guaranteed removal.
func (c *JavaClient) ForceDisconnect() {
	c.Disconnect()
}

// teardown closes the connection and clears session state.
func (c *JavaClient) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.connectedAt = time.Time{}
}

// IsAlive reports whether the client holds an established session.
func (c *JavaClient) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil
}

// SendMessage sends a chat message. Returns false when not connected.
func (c *JavaClient) SendMessage(text string) bool {
	if !c.IsAlive() {
		return false
	}
	var buf bytes.Buffer
	writeVarInt(&buf, playChatMessagePacket)
	writeString(&buf, text)
	binary.Write(&buf, binary.BigEndian, time.Now().UnixMilli())
	binary.Write(&buf, binary.BigEndian, int64(0)) // salt; unsigned chat
	if err := c.writeFrame(buf.Bytes()); err != nil {
		c.logger.Warn("sending chat failed", "error", err)
		return false
	}
	return true
}

// ExecuteCommand runs a slash command. The leading slash is implied.
func (c *JavaClient) ExecuteCommand(cmd string) bool {
	if !c.IsAlive() {
		return false
	}
	var buf bytes.Buffer
	writeVarInt(&buf, playChatCommandPacket)
	writeString(&buf, cmd)
	if err := c.writeFrame(buf.Bytes()); err != nil {
		c.logger.Warn("sending command failed", "error", err)
		return false
	}
	return true
}

// Info returns a runtime snapshot; a minimal record with Connected=false
// when the session is down.
func (c *JavaClient) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{
		Connected: c.connected,
		Username:  c.cfg.Username,
		Server:    c.cfg.Addr(),
		Version:   c.cfg.Version,
		Edition:   "java",
	}
	if c.connected {
		info.ConnectedAt = c.connectedAt
		info.Uptime = time.Since(c.connectedAt)
	}
	return info
}

// emit delivers an event without blocking the read loop.
func (c *JavaClient) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event channel full, dropping event", "type", ev.Type)
	}
}

// writeFrame writes one length-prefixed packet, compressing when the server
// has negotiated a threshold.
func (c *JavaClient) writeFrame(payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	threshold := c.compression
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	var frame bytes.Buffer
	if threshold < 0 {
		writeVarInt(&frame, int32(len(payload)))
		frame.Write(payload)
	} else if int32(len(payload)) < threshold {
		var body bytes.Buffer
		writeVarInt(&body, 0) // uncompressed marker
		body.Write(payload)
		writeVarInt(&frame, int32(body.Len()))
		frame.Write(body.Bytes())
	} else {
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		zw.Write(payload)
		zw.Close()

		var body bytes.Buffer
		writeVarInt(&body, int32(len(payload)))
		body.Write(compressed.Bytes())
		writeVarInt(&frame, int32(body.Len()))
		frame.Write(body.Bytes())
	}

	_, err := conn.Write(frame.Bytes())
	return err
}

// readFrame reads one length-prefixed packet, decompressing when the server
// has negotiated a threshold.
func (c *JavaClient) readFrame(conn net.Conn) ([]byte, error) {
	length, err := readVarIntConn(conn)
	if err != nil {
		return nil, err
	}
	if length <= 0 || length > 1<<21 {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}

	c.mu.Lock()
	threshold := c.compression
	c.mu.Unlock()
	if threshold < 0 {
		return payload, nil
	}

	r := bytes.NewReader(payload)
	dataLen, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	rest := payload[len(payload)-r.Len():]
	if dataLen == 0 {
		return rest, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, int64(dataLen)))
}

// offlineUUID derives the offline-mode player UUID from the username.
func offlineUUID(username string) []byte {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = (sum[6] & 0x0f) | 0x30 // version 3
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC 4122 variant
	return sum[:]
}
