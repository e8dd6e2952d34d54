// ABOUTME: Game client adapter capability interface shared by both editions.
// ABOUTME: Defines the event surface consumed by the fleet's connection supervisor.

package gameclient

import (
	"context"
	"fmt"
	"time"
)

// Config carries the connection parameters for one bot.
type Config struct {
	Host     string
	Port     int
	Username string
	Version  string
}

// Addr returns the host:port form of the target server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionMeta describes an established session, attached to connected events.
type SessionMeta struct {
	Server   string
	Username string
	Version  string
	Edition  string
}

// Info is the runtime snapshot returned by Client.Info. When the client is
// not connected it carries Connected=false and the configured identity only.
type Info struct {
	Connected   bool
	Username    string
	Server      string
	Version     string
	Edition     string
	ConnectedAt time.Time
	Uptime      time.Duration
}

// EventType discriminates adapter lifecycle events.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventKicked
	EventError
	EventChat
)

// Event is one adapter lifecycle occurrence. The supervisor consumes these
// from a single channel so transitions for one bot stay strictly ordered.
type Event struct {
	Type       EventType
	Reason     string
	ServerDown bool // kick classification; meaningful for EventKicked
	Speaker    string
	Text       string
	Meta       SessionMeta
}

// Client is the capability interface for one game-server connection.
// One concrete implementation exists per edition; callers never branch on
// edition after construction.
//
// Connect dials the server; the synchronous error covers the dial only, all
// later lifecycle is delivered through Events. Connect may be called again
// after a disconnection. Disconnect tears down gracefully and suppresses
// further events for the closed session; ForceDisconnect tears down
// immediately and swallows any close error.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	ForceDisconnect()
	IsAlive() bool
	SendMessage(text string) bool
	ExecuteCommand(cmd string) bool
	Info() Info
	Events() <-chan Event
}

// New constructs the edition-appropriate adapter.
func New(edition string, cfg Config, connectTimeout time.Duration) (Client, error) {
	switch edition {
	case "java":
		return NewJavaClient(cfg, connectTimeout), nil
	case "bedrock":
		return NewBedrockClient(cfg, connectTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported edition %q", edition)
	}
}

// eventBufferSize bounds each adapter's event channel. Emission is
// non-blocking: a full channel drops the event rather than stalling the
// network read loop.
const eventBufferSize = 32
