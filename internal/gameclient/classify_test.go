// ABOUTME: Tests for disconnect reason classification.
// ABOUTME: Covers server-down keywords, account/policy keywords, and unknown reasons.

package gameclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerDown(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   bool
	}{
		{"connection refused", "dial tcp 10.0.0.5:25565: connect: connection refused", true},
		{"connection timed out", "read tcp: connection timed out", true},
		{"connection reset", "connection reset by peer", true},
		{"no route", "no route to host", true},
		{"eof", "EOF", true},
		{"broken pipe", "write: broken pipe", true},
		{"server closed", "Server closed", true},
		{"closed network connection", "use of closed network connection", true},
		{"empty reason", "", true},
		{"unknown reason", "something nobody has seen before", true},
		{"xbox login required", "Please log into Xbox with this account", false},
		{"logged in elsewhere", "You logged in from another location (LoggedInOtherLocation)", false},
		{"authentication", "Authentication servers rejected the session", false},
		{"banned", "You are banned from this server", false},
		{"whitelist", "You are not whitelisted on this server", false},
		{"server full", "The server is full!", false},
		{"premium required", "This server requires a premium account", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ServerDown(tt.reason))
		})
	}
}

func TestServerDownCaseInsensitive(t *testing.T) {
	assert.True(t, ServerDown("CONNECTION REFUSED"))
	assert.False(t, ServerDown("YOU ARE BANNED"))
}

func TestIsConnectTimeout(t *testing.T) {
	assert.False(t, IsConnectTimeout(nil))
	assert.False(t, IsConnectTimeout(errors.New("connection refused")))
	assert.True(t, IsConnectTimeout(errors.New("dial tcp: i/o timeout")))
	assert.True(t, IsConnectTimeout(errors.New("connect timed out")))
	assert.True(t, IsConnectTimeout(timeoutErr{}))
}

// timeoutErr satisfies net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }
