// ABOUTME: Error taxonomy for fleet operations.
// ABOUTME: Sentinels for flow-control failures plus a structured validation error.

package fleet

import (
	"errors"
	"fmt"
)

var (
	// ErrBotNotFound means no durable record exists for the id.
	ErrBotNotFound = errors.New("bot not found")

	// ErrAlreadyRunning means a runtime instance is already registered for
	// the id. Start must fail rather than replace it.
	ErrAlreadyRunning = errors.New("bot already running")

	// ErrNotRunning means no runtime instance is registered for the id.
	ErrNotRunning = errors.New("bot is not running")

	// ErrNotConnected means the bot is registered but holds no live session.
	ErrNotConnected = errors.New("bot is not connected")

	// ErrQuotaExceeded means the owner already has the maximum number of bots.
	ErrQuotaExceeded = errors.New("bot quota exceeded")

	// ErrUnauthorized means the requester does not own the bot.
	ErrUnauthorized = errors.New("not the bot owner")
)

// ValidationError reports a rejected bot configuration. Never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
