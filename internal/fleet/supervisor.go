// ABOUTME: Per-bot connection supervisor: bounded-retry reconnection state machine.
// ABOUTME: A single control loop per bot consumes adapter events and retry firings in order.

package fleet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenlabs/minefleet/internal/gameclient"
)

// State is the supervisor's position in the reconnection state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateRetrying
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateRetrying:
		return "retrying"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// EventKind discriminates the signals a supervisor raises to the fleet.
type EventKind int

const (
	KindConnected EventKind = iota
	KindDisconnected
	KindKicked
	KindError
	KindExhausted
	KindChat
)

// Event is one supervisor signal. Events for a single bot are delivered
// sequentially from that bot's control loop.
type Event struct {
	BotID      string
	Kind       EventKind
	Reason     string
	ServerDown bool
	Speaker    string
	Text       string
	Meta       gameclient.SessionMeta
}

// Supervisor wraps one game client adapter and owns its reconnection policy.
// It never branches on edition.
type Supervisor struct {
	botID       string
	client      gameclient.Client
	maxAttempts int
	retryDelay  time.Duration
	handler     func(Event)
	logger      *slog.Logger

	mu          sync.Mutex
	state       State
	attempts    int
	shouldRetry bool
	retryTimer  *time.Timer
	stopped     bool

	retryCh  chan struct{}
	stopCh   chan struct{}
	loopOnce sync.Once
	stopOnce sync.Once
}

// NewSupervisor creates a supervisor around an adapter. handler receives
// lifecycle signals from the supervisor's control loop goroutine.
func NewSupervisor(botID string, client gameclient.Client, maxAttempts int, retryDelay time.Duration, handler func(Event)) *Supervisor {
	return &Supervisor{
		botID:       botID,
		client:      client,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		handler:     handler,
		logger:      slog.Default().With("component", "supervisor", "bot_id", botID),
		state:       StateIdle,
		retryCh:     make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// Connect dials the adapter. Idempotent while already connecting or
// connected. A synchronous error covers the initial dial only; all later
// lifecycle flows through the handler.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.shouldRetry = true
	s.mu.Unlock()

	s.loopOnce.Do(func() { go s.loop() })

	if err := s.client.Connect(ctx); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return err
	}
	return nil
}

// loop is the single control flow for this bot: adapter events and retry
// timer firings are consumed here, so state transitions stay strictly
// ordered per bot.
func (s *Supervisor) loop() {
	for {
		select {
		case <-s.stopCh:
			return
		case ev := <-s.client.Events():
			s.handleClientEvent(ev)
		case <-s.retryCh:
			s.retryConnect()
		}
	}
}

func (s *Supervisor) handleClientEvent(ev gameclient.Event) {
	switch ev.Type {
	case gameclient.EventConnected:
		s.mu.Lock()
		s.state = StateConnected
		s.attempts = 0
		s.mu.Unlock()
		s.emit(Event{Kind: KindConnected, Meta: ev.Meta})

	case gameclient.EventDisconnected:
		s.markDisconnected()
		s.emit(Event{Kind: KindDisconnected, Reason: ev.Reason, ServerDown: true})
		s.scheduleRetry()

	case gameclient.EventKicked:
		s.markDisconnected()
		s.emit(Event{Kind: KindKicked, Reason: ev.Reason, ServerDown: ev.ServerDown})
		// policy kicks still run through the shared retry counter
		s.scheduleRetry()

	case gameclient.EventError:
		s.markDisconnected()
		s.emit(Event{Kind: KindError, Reason: ev.Reason})
		s.scheduleRetry()

	case gameclient.EventChat:
		s.emit(Event{Kind: KindChat, Speaker: ev.Speaker, Text: ev.Text})
	}
}

func (s *Supervisor) markDisconnected() {
	s.mu.Lock()
	if s.state != StateExhausted {
		s.state = StateDisconnected
	}
	s.mu.Unlock()
}

// scheduleRetry applies the bounded-retry policy after a failure. At most
// maxAttempts reconnects are scheduled; the next failure past the bound
// emits a single exhausted signal.
func (s *Supervisor) scheduleRetry() {
	s.mu.Lock()
	if !s.shouldRetry || s.stopped {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.maxAttempts {
		if s.state != StateExhausted {
			s.state = StateExhausted
			s.shouldRetry = false
			s.mu.Unlock()
			s.logger.Warn("reconnect attempts exhausted", "attempts", s.attempts)
			s.emit(Event{Kind: KindExhausted})
			return
		}
		s.mu.Unlock()
		return
	}

	s.attempts++
	s.state = StateRetrying
	attempt := s.attempts
	s.retryTimer = time.AfterFunc(s.retryDelay, func() {
		select {
		case s.retryCh <- struct{}{}:
		default:
		}
	})
	s.mu.Unlock()

	s.logger.Info("scheduling reconnect", "attempt", attempt, "delay", s.retryDelay)
}

// retryConnect runs a timer-fired reconnect attempt. A timer that fires
// after StopReconnecting must do nothing.
func (s *Supervisor) retryConnect() {
	s.mu.Lock()
	if !s.shouldRetry || s.stopped || s.state != StateRetrying {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.mu.Unlock()

	err := s.client.Connect(context.Background())
	if err == nil {
		return // success arrives as a connected event
	}

	// Dial failures during downtime are routine: log and keep retrying,
	// no error signal upward.
	if gameclient.IsConnectTimeout(err) {
		s.logger.Info("reconnect timed out", "error", err)
	} else {
		s.logger.Warn("reconnect failed", "error", err)
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()
	s.scheduleRetry()
}

// StopReconnecting disables the retry policy and cancels any pending timer.
func (s *Supervisor) StopReconnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shouldRetry = false
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	// a fired-but-unconsumed retry is discarded by retryConnect's
	// shouldRetry check
}

// Disconnect tears down gracefully: no further retries, adapter closed,
// control loop stopped.
func (s *Supervisor) Disconnect() {
	s.StopReconnecting()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.client.Disconnect()
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ForceDisconnect tears down immediately. Adapter errors during teardown
// are swallowed; the job here is guaranteed removal.
func (s *Supervisor) ForceDisconnect() {
	s.StopReconnecting()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.client.ForceDisconnect()
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// IsAlive is true only in the connected state.
func (s *Supervisor) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// State returns the current machine state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns the adapter's runtime snapshot.
func (s *Supervisor) Info() gameclient.Info {
	return s.client.Info()
}

// SendMessage forwards a chat message to the adapter.
func (s *Supervisor) SendMessage(text string) bool {
	return s.client.SendMessage(text)
}

// ExecuteCommand forwards a command to the adapter.
func (s *Supervisor) ExecuteCommand(cmd string) bool {
	return s.client.ExecuteCommand(cmd)
}

func (s *Supervisor) emit(ev Event) {
	ev.BotID = s.botID
	if s.handler != nil {
		s.handler(ev)
	}
}
