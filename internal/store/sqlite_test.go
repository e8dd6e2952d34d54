// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user/bot CRUD, episode history, settings, and aggregates

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func testUser(t *testing.T, s *SQLiteStore) *User {
	t.Helper()
	u := &User{
		ID:       uuid.New().String(),
		ChatID:   uuid.New().String(),
		Username: "tester",
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func testBot(t *testing.T, s *SQLiteStore, ownerID string) *Bot {
	t.Helper()
	b := &Bot{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Name:    "Steve",
		Host:    "mc.example.com",
		Port:    25565,
		Version: "1.21.8",
		Edition: EditionJava,
	}
	if err := s.CreateBot(context.Background(), b); err != nil {
		t.Fatalf("CreateBot failed: %v", err)
	}
	return b
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.ChatID != u.ChatID || got.Username != "tester" {
		t.Errorf("got %+v, want chat_id=%s username=tester", got, u.ChatID)
	}

	byChat, err := s.GetUserByChatID(ctx, u.ChatID)
	if err != nil {
		t.Fatalf("GetUserByChatID failed: %v", err)
	}
	if byChat.ID != u.ID {
		t.Errorf("GetUserByChatID returned ID %s, want %s", byChat.ID, u.ID)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if _, err := s.GetUser(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAndGetBot(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)
	b := testBot(t, s, u.ID)

	got, err := s.GetBot(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBot failed: %v", err)
	}
	if got.Name != "Steve" || got.Host != "mc.example.com" || got.Port != 25565 {
		t.Errorf("bot fields mismatch: %+v", got)
	}
	if got.Edition != EditionJava || got.Version != "1.21.8" {
		t.Errorf("edition/version mismatch: %+v", got)
	}
	if got.Status != StatusStopped {
		t.Errorf("new bot status = %s, want stopped", got.Status)
	}
}

func TestListBotsByOwner(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	owner := testUser(t, s)
	other := testUser(t, s)
	testBot(t, s, owner.ID)
	testBot(t, s, owner.ID)
	testBot(t, s, other.ID)

	bots, err := s.ListBotsByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListBotsByOwner failed: %v", err)
	}
	if len(bots) != 2 {
		t.Errorf("expected 2 bots, got %d", len(bots))
	}
}

func TestUpdateBotStatus(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)
	b := testBot(t, s, u.ID)

	if err := s.UpdateBotStatus(ctx, b.ID, StatusRunning); err != nil {
		t.Fatalf("UpdateBotStatus failed: %v", err)
	}

	got, _ := s.GetBot(ctx, b.ID)
	if got.Status != StatusRunning {
		t.Errorf("status = %s, want running", got.Status)
	}

	if err := s.UpdateBotStatus(ctx, "missing", StatusRunning); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown bot, got %v", err)
	}
}

func TestUpdateBotName(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)
	b := testBot(t, s, u.ID)

	if err := s.UpdateBotName(ctx, b.ID, "Alex"); err != nil {
		t.Fatalf("UpdateBotName failed: %v", err)
	}

	got, _ := s.GetBot(ctx, b.ID)
	if got.Name != "Alex" {
		t.Errorf("name = %s, want Alex", got.Name)
	}
}

func TestDeleteBot(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)
	b := testBot(t, s, u.ID)

	if err := s.DeleteBot(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBot failed: %v", err)
	}
	if _, err := s.GetBot(ctx, b.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteBot(ctx, b.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for double delete, got %v", err)
	}
}

func TestEpisodes(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)
	b := testBot(t, s, u.ID)

	connAt := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Second)
	discAt := connAt.Add(7 * time.Minute)

	ep := &Episode{
		ID:             uuid.New().String(),
		BotID:          b.ID,
		ConnectedAt:    connAt,
		DisconnectedAt: &discAt,
		ErrorMessage:   "connection reset",
	}
	if err := s.AppendEpisode(ctx, ep); err != nil {
		t.Fatalf("AppendEpisode failed: %v", err)
	}

	eps, err := s.ListEpisodes(ctx, b.ID, 10)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(eps))
	}
	if eps[0].DurationMin != 7 {
		t.Errorf("duration = %d, want 7", eps[0].DurationMin)
	}
	if eps[0].ErrorMessage != "connection reset" {
		t.Errorf("error message = %q", eps[0].ErrorMessage)
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	// Seeded default
	v, err := s.Setting(ctx, SettingMaxBotsPerUser)
	if err != nil {
		t.Fatalf("Setting failed: %v", err)
	}
	if v != "3" {
		t.Errorf("max_bots_per_user = %q, want 3", v)
	}

	if err := s.SetSetting(ctx, SettingMaxBotsPerUser, "5"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	v, _ = s.Setting(ctx, SettingMaxBotsPerUser)
	if v != "5" {
		t.Errorf("max_bots_per_user = %q, want 5", v)
	}

	if _, err := s.Setting(ctx, "unknown"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)
	b1 := testBot(t, s, u.ID)
	testBot(t, s, u.ID)

	s.UpdateBotStatus(ctx, b1.ID, StatusRunning)

	connAt := time.Now().UTC().Add(-30 * time.Minute)
	discAt := connAt.Add(12 * time.Minute)
	s.AppendEpisode(ctx, &Episode{
		ID: uuid.New().String(), BotID: b1.ID,
		ConnectedAt: connAt, DisconnectedAt: &discAt,
	})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalUsers != 1 || stats.TotalBots != 2 || stats.RunningBots != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalRuntimeMin != 12 {
		t.Errorf("runtime = %d, want 12", stats.TotalRuntimeMin)
	}
}

func TestDeleteBotCascadesEpisodes(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	u := testUser(t, s)
	b := testBot(t, s, u.ID)
	s.AppendEpisode(ctx, &Episode{
		ID: uuid.New().String(), BotID: b.ID, ConnectedAt: time.Now().UTC(),
	})

	if err := s.DeleteBot(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBot failed: %v", err)
	}

	eps, err := s.ListEpisodes(ctx, b.ID, 10)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(eps) != 0 {
		t.Errorf("expected episodes to cascade on delete, got %d", len(eps))
	}
}
