// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	users    map[string]*User      // keyed by user ID
	chatIdx  map[string]string     // chat ID -> user ID
	bots     map[string]*Bot       // keyed by bot ID
	episodes map[string][]*Episode // keyed by bot ID
	settings map[string]string

	// StatusErr, when set, is returned by UpdateBotStatus. Lets tests
	// simulate a storage outage on teardown paths.
	StatusErr error
}

// NewMockStore creates a new MockStore with default settings seeded.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]*User),
		chatIdx:  make(map[string]string),
		bots:     make(map[string]*Bot),
		episodes: make(map[string][]*Episode),
		settings: map[string]string{SettingMaxBotsPerUser: "3"},
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := *user
	m.users[u.ID] = &u
	m.chatIdx[u.ChatID] = u.ID
	return nil
}

// GetUserByChatID retrieves a user by chat platform identifier.
func (m *MockStore) GetUserByChatID(ctx context.Context, chatID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.chatIdx[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	u := *m.users[id]
	return &u, nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateBot stores a new bot.
func (m *MockStore) CreateBot(ctx context.Context, bot *Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := *bot
	if b.Status == "" {
		b.Status = StatusStopped
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	m.bots[b.ID] = &b
	return nil
}

// GetBot retrieves a bot by ID.
func (m *MockStore) GetBot(ctx context.Context, id string) (*Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// ListBotsByOwner returns all bots for an owner, newest first.
func (m *MockStore) ListBotsByOwner(ctx context.Context, ownerID string) ([]*Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var bots []*Bot
	for _, b := range m.bots {
		if b.OwnerID == ownerID {
			cp := *b
			bots = append(bots, &cp)
		}
	}
	sort.Slice(bots, func(i, j int) bool {
		return bots[i].CreatedAt.After(bots[j].CreatedAt)
	})
	return bots, nil
}

// UpdateBotStatus sets the lifecycle status of a bot.
func (m *MockStore) UpdateBotStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StatusErr != nil {
		return m.StatusErr
	}

	b, ok := m.bots[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateBotName sets the display name of a bot.
func (m *MockStore) UpdateBotName(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bots[id]
	if !ok {
		return ErrNotFound
	}
	b.Name = name
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteBot removes a bot and its episode history.
func (m *MockStore) DeleteBot(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bots[id]; !ok {
		return ErrNotFound
	}
	delete(m.bots, id)
	delete(m.episodes, id)
	return nil
}

// AppendEpisode records a connection episode.
func (m *MockStore) AppendEpisode(ctx context.Context, ep *Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ep
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.episodes[cp.BotID] = append(m.episodes[cp.BotID], &cp)
	return nil
}

// ListEpisodes returns the most recent episodes for a bot.
func (m *MockStore) ListEpisodes(ctx context.Context, botID string, limit int) ([]*Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eps := m.episodes[botID]
	out := make([]*Episode, 0, len(eps))
	for i := len(eps) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *eps[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Setting retrieves a setting value.
func (m *MockStore) Setting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetSetting writes a setting value.
func (m *MockStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

// Stats returns aggregate counters over the in-memory data.
func (m *MockStore) Stats(ctx context.Context) (*GeneralStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &GeneralStats{
		TotalUsers: len(m.users),
		TotalBots:  len(m.bots),
	}
	for _, b := range m.bots {
		if b.Status == StatusRunning {
			stats.RunningBots++
		}
	}
	for _, eps := range m.episodes {
		for _, ep := range eps {
			stats.TotalRuntimeMin += ep.DurationMin
		}
	}
	return stats, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
