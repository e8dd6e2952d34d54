// ABOUTME: Notification sink surface for fleet lifecycle and alert signals.
// ABOUTME: Delivery is best-effort and fire-and-forget from the fleet's perspective.

package fleet

import (
	"log/slog"

	"github.com/wardenlabs/minefleet/internal/gameclient"
)

// Notifier receives typed lifecycle and escalation signals. Implementations
// must not block: the fleet calls these inline from supervisor control loops
// and the health sweep.
type Notifier interface {
	BotConnected(botID string, meta gameclient.SessionMeta)
	BotDisconnected(botID string)
	BotError(botID, reason string)
	DisconnectionWarning(botID string, count int) // count in 1..5
	DisconnectionFinal(botID string)
	BotChat(botID, speaker, text string)
}

// SlogNotifier writes every signal to structured logs. Used for headless
// runs and as the fallback sink when no websocket subscribers exist.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a log-backed notification sink.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogNotifier{logger: logger.With("component", "notifier")}
}

func (n *SlogNotifier) BotConnected(botID string, meta gameclient.SessionMeta) {
	n.logger.Info("bot connected", "bot_id", botID, "server", meta.Server, "username", meta.Username, "edition", meta.Edition)
}

func (n *SlogNotifier) BotDisconnected(botID string) {
	n.logger.Warn("bot disconnected", "bot_id", botID)
}

func (n *SlogNotifier) BotError(botID, reason string) {
	n.logger.Error("bot error", "bot_id", botID, "reason", reason)
}

func (n *SlogNotifier) DisconnectionWarning(botID string, count int) {
	n.logger.Warn("disconnection warning", "bot_id", botID, "count", count)
}

func (n *SlogNotifier) DisconnectionFinal(botID string) {
	n.logger.Error("disconnection final, forcing stop", "bot_id", botID)
}

func (n *SlogNotifier) BotChat(botID, speaker, text string) {
	n.logger.Info("chat", "bot_id", botID, "speaker", speaker, "text", text)
}

// MultiNotifier fans each signal out to several sinks in order.
type MultiNotifier []Notifier

func (m MultiNotifier) BotConnected(botID string, meta gameclient.SessionMeta) {
	for _, n := range m {
		n.BotConnected(botID, meta)
	}
}

func (m MultiNotifier) BotDisconnected(botID string) {
	for _, n := range m {
		n.BotDisconnected(botID)
	}
}

func (m MultiNotifier) BotError(botID, reason string) {
	for _, n := range m {
		n.BotError(botID, reason)
	}
}

func (m MultiNotifier) DisconnectionWarning(botID string, count int) {
	for _, n := range m {
		n.DisconnectionWarning(botID, count)
	}
}

func (m MultiNotifier) DisconnectionFinal(botID string) {
	for _, n := range m {
		n.DisconnectionFinal(botID)
	}
}

func (m MultiNotifier) BotChat(botID, speaker, text string) {
	for _, n := range m {
		n.BotChat(botID, speaker, text)
	}
}
