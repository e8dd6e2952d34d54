// ABOUTME: Fleet registry and health monitor: runtime instance map, quotas,
// ABOUTME: the periodic liveness sweep, and the disconnection escalation protocol.

package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardenlabs/minefleet/internal/gameclient"
	"github.com/wardenlabs/minefleet/internal/store"
)

// Escalation counter bounds: five graded warnings, then one terminal
// notice; the sentinel marks a finalized episode.
const (
	maxAlertWarnings   = 5
	alertFinalSentinel = 6
)

// ClientFactory builds an edition-appropriate adapter. Swapped for a fake
// in tests.
type ClientFactory func(edition string, cfg gameclient.Config, connectTimeout time.Duration) (gameclient.Client, error)

// Options configures a Manager. Zero fields fall back to the documented
// defaults.
type Options struct {
	MaxBotsPerUser       int
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	SweepInterval        time.Duration
	ConnectTimeout       time.Duration
	Versions             map[string][]string // edition -> supported versions
	NewClient            ClientFactory
}

// instance is a live bot: one adapter wrapped by one supervisor, keyed by
// bot id. At most one exists per id at any time.
type instance struct {
	bot *store.Bot
	sup *Supervisor

	mu          sync.Mutex
	connectedAt time.Time
}

// BotInfo merges the durable record with the adapter's runtime snapshot.
type BotInfo struct {
	Bot       *store.Bot
	Connected bool
	Runtime   gameclient.Info
}

// CreateParams is the caller-supplied configuration for a new bot.
type CreateParams struct {
	Name    string
	Host    string
	Port    int
	Edition string
	Version string
}

// Manager owns the mapping from bot id to runtime instance and enforces
// fleet-wide invariants.
type Manager struct {
	store    store.Store
	notifier Notifier
	opts     Options
	logger   *slog.Logger

	mu        sync.RWMutex
	instances map[string]*instance

	alertMu sync.Mutex
	alerts  map[string]int

	manualMu    sync.Mutex
	manualStops map[string]struct{}
}

// NewManager creates a fleet manager. Call Run to start the health sweep.
func NewManager(st store.Store, notifier Notifier, opts Options) *Manager {
	if opts.MaxBotsPerUser <= 0 {
		opts.MaxBotsPerUser = 3
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.NewClient == nil {
		opts.NewClient = func(edition string, cfg gameclient.Config, timeout time.Duration) (gameclient.Client, error) {
			return gameclient.New(edition, cfg, timeout)
		}
	}
	if notifier == nil {
		notifier = NewSlogNotifier(nil)
	}

	return &Manager{
		store:       st,
		notifier:    notifier,
		opts:        opts,
		logger:      slog.Default().With("component", "fleet"),
		instances:   make(map[string]*instance),
		alerts:      make(map[string]int),
		manualStops: make(map[string]struct{}),
	}
}

// Run drives the periodic health sweep until ctx is cancelled. Blocks.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info("health sweep started", "interval", m.opts.SweepInterval)
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health sweep stopped")
			return
		case <-ticker.C:
			m.sweep(context.Background())
		}
	}
}

// CreateBot validates and persists a new bot with status stopped. Never
// partially creates.
func (m *Manager) CreateBot(ctx context.Context, ownerID string, p CreateParams) (*store.Bot, error) {
	if err := m.validate(p); err != nil {
		return nil, err
	}

	limit := m.quota(ctx)
	existing, err := m.store.ListBotsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("counting bots for owner: %w", err)
	}
	if len(existing) >= limit {
		return nil, fmt.Errorf("%w: limit is %d", ErrQuotaExceeded, limit)
	}

	bot := &store.Bot{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Name:    p.Name,
		Host:    p.Host,
		Port:    p.Port,
		Edition: p.Edition,
		Version: p.Version,
		Status:  store.StatusStopped,
	}
	if err := m.store.CreateBot(ctx, bot); err != nil {
		return nil, fmt.Errorf("persisting bot: %w", err)
	}

	m.logger.Info("bot created", "bot_id", bot.ID, "owner_id", ownerID, "name", bot.Name)
	return bot, nil
}

func (m *Manager) validate(p CreateParams) error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Host == "" {
		return &ValidationError{Field: "host", Reason: "must not be empty"}
	}
	if p.Port < 1 || p.Port > 65535 {
		return &ValidationError{Field: "port", Reason: "must be in 1..65535"}
	}
	supported, ok := m.opts.Versions[p.Edition]
	if !ok {
		return &ValidationError{Field: "edition", Reason: `must be "java" or "bedrock"`}
	}
	for _, v := range supported {
		if v == p.Version {
			return nil
		}
	}
	return &ValidationError{Field: "version", Reason: fmt.Sprintf("%q is not supported for %s", p.Version, p.Edition)}
}

// quota reads the per-owner bot limit from settings, falling back to the
// configured default.
func (m *Manager) quota(ctx context.Context) int {
	raw, err := m.store.Setting(ctx, store.SettingMaxBotsPerUser)
	if err != nil {
		return m.opts.MaxBotsPerUser
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return m.opts.MaxBotsPerUser
	}
	return n
}

// StartBot builds the edition adapter, connects, and registers the runtime
// instance. The registry check and insert happen under one lock so two
// concurrent starts can never both register.
func (m *Manager) StartBot(ctx context.Context, id string) error {
	bot, err := m.store.GetBot(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBotNotFound
		}
		return fmt.Errorf("loading bot: %w", err)
	}

	client, err := m.opts.NewClient(bot.Edition, gameclient.Config{
		Host:     bot.Host,
		Port:     bot.Port,
		Username: bot.Name,
		Version:  bot.Version,
	}, m.opts.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("building %s adapter: %w", bot.Edition, err)
	}

	inst := &instance{bot: bot}
	inst.sup = NewSupervisor(id, client, m.opts.MaxReconnectAttempts, m.opts.ReconnectDelay, m.handleSupervisorEvent)

	m.mu.Lock()
	if _, exists := m.instances[id]; exists {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.instances[id] = inst
	m.mu.Unlock()

	m.clearManualStop(id)

	if err := inst.sup.Connect(ctx); err != nil {
		m.deregister(id)
		inst.sup.Disconnect()
		if perr := m.store.UpdateBotStatus(ctx, id, store.StatusError); perr != nil {
			m.logger.Error("persisting error status failed", "bot_id", id, "error", perr)
		}
		return fmt.Errorf("connecting to %s:%d: %w", bot.Host, bot.Port, err)
	}

	if err := m.store.UpdateBotStatus(ctx, id, store.StatusRunning); err != nil {
		m.deregister(id)
		inst.sup.Disconnect()
		return fmt.Errorf("persisting running status: %w", err)
	}

	m.logger.Info("bot started", "bot_id", id, "server", fmt.Sprintf("%s:%d", bot.Host, bot.Port), "edition", bot.Edition)
	return nil
}

// StopBot is the operator-initiated stop. The id enters the manual-stop set
// before any teardown so a concurrent sweep cannot race to auto-handle the
// resulting disconnection.
func (m *Manager) StopBot(ctx context.Context, id string) error {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotRunning
	}

	m.markManualStop(id)

	inst.sup.StopReconnecting()
	inst.sup.Disconnect()
	m.deregister(id)

	if err := m.store.UpdateBotStatus(ctx, id, store.StatusStopped); err != nil {
		return fmt.Errorf("persisting stopped status: %w", err)
	}

	m.logger.Info("bot stopped", "bot_id", id)
	return nil
}

// ForceStopBot is the escalation protocol's terminal teardown. Adapter and
// storage failures never block removal; they are logged and swallowed.
func (m *Manager) ForceStopBot(ctx context.Context, id string) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()

	if ok {
		inst.sup.ForceDisconnect()
		m.deregister(id)
	}

	if err := m.store.UpdateBotStatus(ctx, id, store.StatusStopped); err != nil {
		m.logger.Error("persisting stopped status after force-stop failed", "bot_id", id, "error", err)
	}

	m.clearAlerts(id)
	m.logger.Warn("bot force-stopped", "bot_id", id)
}

// DeleteBot removes the durable record, stopping the bot first if running.
func (m *Manager) DeleteBot(ctx context.Context, id, requesterID string) error {
	bot, err := m.store.GetBot(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBotNotFound
		}
		return fmt.Errorf("loading bot: %w", err)
	}
	if bot.OwnerID != requesterID {
		return ErrUnauthorized
	}

	if err := m.StopBot(ctx, id); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}

	if err := m.store.DeleteBot(ctx, id); err != nil {
		return fmt.Errorf("deleting bot: %w", err)
	}

	m.logger.Info("bot deleted", "bot_id", id, "owner_id", requesterID)
	return nil
}

// RenameBot updates the display name, bouncing the connection when running
// so the new name is presented to the server.
func (m *Manager) RenameBot(ctx context.Context, id, requesterID, name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	bot, err := m.store.GetBot(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBotNotFound
		}
		return fmt.Errorf("loading bot: %w", err)
	}
	if bot.OwnerID != requesterID {
		return ErrUnauthorized
	}

	m.mu.RLock()
	_, wasRunning := m.instances[id]
	m.mu.RUnlock()

	if wasRunning {
		if err := m.StopBot(ctx, id); err != nil {
			return err
		}
	}

	if err := m.store.UpdateBotName(ctx, id, name); err != nil {
		return fmt.Errorf("renaming bot: %w", err)
	}

	if wasRunning {
		if err := m.StartBot(ctx, id); err != nil {
			return fmt.Errorf("restarting after rename: %w", err)
		}
	}
	return nil
}

// SendMessage relays chat text through a connected bot.
func (m *Manager) SendMessage(ctx context.Context, id, text string) error {
	inst, err := m.connectedInstance(id)
	if err != nil {
		return err
	}
	if !inst.sup.SendMessage(text) {
		return ErrNotConnected
	}
	return nil
}

// ExecuteCommand runs a server command through a connected bot.
func (m *Manager) ExecuteCommand(ctx context.Context, id, cmd string) error {
	inst, err := m.connectedInstance(id)
	if err != nil {
		return err
	}
	if !inst.sup.ExecuteCommand(cmd) {
		return ErrNotConnected
	}
	return nil
}

func (m *Manager) connectedInstance(id string) (*instance, error) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotRunning
	}
	if !inst.sup.IsAlive() {
		return nil, ErrNotConnected
	}
	return inst, nil
}

// BotInfo returns the durable record merged with live runtime state.
func (m *Manager) BotInfo(ctx context.Context, id string) (*BotInfo, error) {
	bot, err := m.store.GetBot(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("loading bot: %w", err)
	}
	return m.mergeInfo(bot), nil
}

// ListBots returns info for every bot the owner has.
func (m *Manager) ListBots(ctx context.Context, ownerID string) ([]*BotInfo, error) {
	bots, err := m.store.ListBotsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing bots: %w", err)
	}
	infos := make([]*BotInfo, 0, len(bots))
	for _, bot := range bots {
		infos = append(infos, m.mergeInfo(bot))
	}
	return infos, nil
}

func (m *Manager) mergeInfo(bot *store.Bot) *BotInfo {
	m.mu.RLock()
	inst, ok := m.instances[bot.ID]
	m.mu.RUnlock()

	info := &BotInfo{Bot: bot}
	if ok {
		info.Runtime = inst.sup.Info()
		info.Connected = inst.sup.IsAlive()
	}
	return info
}

// Stats returns durable aggregates plus the live instance count.
func (m *Manager) Stats(ctx context.Context) (*store.GeneralStats, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	m.mu.RLock()
	stats.ActiveInstanceCnt = len(m.instances)
	m.mu.RUnlock()
	return stats, nil
}

// Shutdown disconnects every instance and persists stopped. Used at
// process exit.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]*instance)
	m.mu.Unlock()

	for id, inst := range instances {
		inst.sup.StopReconnecting()
		inst.sup.Disconnect()
		if err := m.store.UpdateBotStatus(ctx, id, store.StatusStopped); err != nil {
			m.logger.Error("persisting stopped status at shutdown failed", "bot_id", id, "error", err)
		}
	}
	m.logger.Info("fleet shut down", "instances", len(instances))
}

// sweep reconciles the registry against adapter liveness once.
func (m *Manager) sweep(ctx context.Context) {
	m.mu.RLock()
	snapshot := make(map[string]*instance, len(m.instances))
	for id, inst := range m.instances {
		snapshot[id] = inst
	}
	m.mu.RUnlock()

	for id, inst := range snapshot {
		if inst.sup.IsAlive() {
			if m.alertCount(id) > 0 {
				m.clearAlerts(id)
				m.logger.Info("bot recovered, alerts cleared", "bot_id", id)
			}
			continue
		}
		m.escalate(ctx, id)
	}
}

// escalate runs the disconnection escalation protocol for one bot: five
// graded warnings, then a terminal notice and force-stop, never re-entrant
// for the same episode.
func (m *Manager) escalate(ctx context.Context, id string) {
	if m.isManuallyStopped(id) {
		return
	}

	m.alertMu.Lock()
	count := m.alerts[id]
	if count >= alertFinalSentinel {
		m.alertMu.Unlock()
		return
	}
	if count < maxAlertWarnings {
		count++
		m.alerts[id] = count
		m.alertMu.Unlock()
		m.logger.Warn("bot disconnected, warning issued", "bot_id", id, "count", count)
		m.notifier.DisconnectionWarning(id, count)
		return
	}

	// the sentinel goes in before the force-stop so re-entrant triggers
	// see a finalized episode
	m.alerts[id] = alertFinalSentinel
	m.alertMu.Unlock()

	m.notifier.DisconnectionFinal(id)
	m.ForceStopBot(ctx, id)
}

// handleSupervisorEvent reacts to per-bot lifecycle signals. Runs on the
// supervisor's control loop goroutine, so events for one bot arrive in
// order.
func (m *Manager) handleSupervisorEvent(ev Event) {
	ctx := context.Background()

	switch ev.Kind {
	case KindConnected:
		m.markConnected(ev.BotID)
		m.clearAlerts(ev.BotID)
		if err := m.store.UpdateBotStatus(ctx, ev.BotID, store.StatusRunning); err != nil {
			m.logger.Error("persisting running status failed", "bot_id", ev.BotID, "error", err)
		}
		m.notifier.BotConnected(ev.BotID, ev.Meta)

	case KindDisconnected:
		m.closeEpisode(ctx, ev.BotID, ev.Reason)
		m.notifier.BotDisconnected(ev.BotID)
		m.escalate(ctx, ev.BotID)

	case KindKicked:
		m.closeEpisode(ctx, ev.BotID, ev.Reason)
		if ev.ServerDown {
			m.notifier.BotDisconnected(ev.BotID)
			m.escalate(ctx, ev.BotID)
			return
		}
		// account/policy rejection: a hard error, not a connectivity alert
		m.notifier.BotError(ev.BotID, ev.Reason)

	case KindError:
		m.closeEpisode(ctx, ev.BotID, ev.Reason)
		if err := m.store.UpdateBotStatus(ctx, ev.BotID, store.StatusError); err != nil {
			m.logger.Error("persisting error status failed", "bot_id", ev.BotID, "error", err)
		}
		m.notifier.BotError(ev.BotID, ev.Reason)

	case KindExhausted:
		m.escalate(ctx, ev.BotID)

	case KindChat:
		m.notifier.BotChat(ev.BotID, ev.Speaker, ev.Text)
	}
}

// markConnected records the session start for episode bookkeeping.
func (m *Manager) markConnected(id string) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	inst.mu.Lock()
	inst.connectedAt = time.Now()
	inst.mu.Unlock()
}

// closeEpisode appends a connection-episode record when a session that was
// established ends.
func (m *Manager) closeEpisode(ctx context.Context, id, reason string) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return
	}

	inst.mu.Lock()
	started := inst.connectedAt
	inst.connectedAt = time.Time{}
	inst.mu.Unlock()

	if started.IsZero() {
		return
	}

	now := time.Now()
	ep := &store.Episode{
		ID:             uuid.NewString(),
		BotID:          id,
		ConnectedAt:    started,
		DisconnectedAt: &now,
		DurationMin:    int(now.Sub(started).Minutes()),
		ErrorMessage:   reason,
	}
	if err := m.store.AppendEpisode(ctx, ep); err != nil {
		m.logger.Error("appending episode failed", "bot_id", id, "error", err)
	}
}

func (m *Manager) deregister(id string) {
	m.mu.Lock()
	delete(m.instances, id)
	m.mu.Unlock()
}

func (m *Manager) markManualStop(id string) {
	m.manualMu.Lock()
	m.manualStops[id] = struct{}{}
	m.manualMu.Unlock()
}

func (m *Manager) clearManualStop(id string) {
	m.manualMu.Lock()
	delete(m.manualStops, id)
	m.manualMu.Unlock()
}

func (m *Manager) isManuallyStopped(id string) bool {
	m.manualMu.Lock()
	defer m.manualMu.Unlock()
	_, ok := m.manualStops[id]
	return ok
}

func (m *Manager) alertCount(id string) int {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	return m.alerts[id]
}

func (m *Manager) clearAlerts(id string) {
	m.alertMu.Lock()
	delete(m.alerts, id)
	m.alertMu.Unlock()
}
