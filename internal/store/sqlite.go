// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides bot/user/episode persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.seedSettings(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding settings: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			chat_id    TEXT UNIQUE NOT NULL,
			username   TEXT,
			is_admin   INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bots (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			host       TEXT NOT NULL,
			port       INTEGER NOT NULL,
			version    TEXT NOT NULL,
			edition    TEXT NOT NULL CHECK(edition IN ('java', 'bedrock')),
			status     TEXT NOT NULL DEFAULT 'stopped' CHECK(status IN ('running', 'stopped', 'error')),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (owner_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_bots_owner ON bots(owner_id);
		CREATE INDEX IF NOT EXISTS idx_bots_status ON bots(status);

		CREATE TABLE IF NOT EXISTS episodes (
			id              TEXT PRIMARY KEY,
			bot_id          TEXT NOT NULL,
			connected_at    DATETIME NOT NULL,
			disconnected_at DATETIME,
			duration_min    INTEGER NOT NULL DEFAULT 0,
			error_message   TEXT,
			created_at      DATETIME NOT NULL,
			FOREIGN KEY (bot_id) REFERENCES bots(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_episodes_bot ON episodes(bot_id, created_at);

		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// seedSettings inserts default settings when they are absent.
func (s *SQLiteStore) seedSettings() error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		SettingMaxBotsPerUser, "3", time.Now().UTC(),
	)
	return err
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, chat_id, username, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.ChatID, user.Username, boolToInt(user.IsAdmin), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUserByChatID retrieves a user by their external chat platform identifier.
func (s *SQLiteStore) GetUserByChatID(ctx context.Context, chatID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, username, is_admin, created_at, updated_at
		 FROM users WHERE chat_id = ?`, chatID)
	return scanUser(row)
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, username, is_admin, created_at, updated_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var isAdmin int
	err := row.Scan(&u.ID, &u.ChatID, &u.Username, &isAdmin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.IsAdmin = isAdmin != 0
	return &u, nil
}

// CreateBot inserts a new bot record.
func (s *SQLiteStore) CreateBot(ctx context.Context, bot *Bot) error {
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now
	if bot.Status == "" {
		bot.Status = StatusStopped
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bots (id, owner_id, name, host, port, version, edition, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bot.ID, bot.OwnerID, bot.Name, bot.Host, bot.Port, bot.Version, bot.Edition, bot.Status,
		bot.CreatedAt, bot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting bot: %w", err)
	}
	return nil
}

// GetBot retrieves a bot by ID.
func (s *SQLiteStore) GetBot(ctx context.Context, id string) (*Bot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, host, port, version, edition, status, created_at, updated_at
		 FROM bots WHERE id = ?`, id)

	var b Bot
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Host, &b.Port, &b.Version, &b.Edition,
		&b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bot: %w", err)
	}
	return &b, nil
}

// ListBotsByOwner returns all bots belonging to an owner, newest first.
func (s *SQLiteStore) ListBotsByOwner(ctx context.Context, ownerID string) ([]*Bot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, host, port, version, edition, status, created_at, updated_at
		 FROM bots WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying bots: %w", err)
	}
	defer rows.Close()

	var bots []*Bot
	for rows.Next() {
		var b Bot
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Host, &b.Port, &b.Version, &b.Edition,
			&b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning bot: %w", err)
		}
		bots = append(bots, &b)
	}
	return bots, rows.Err()
}

// UpdateBotStatus sets the lifecycle status of a bot.
func (s *SQLiteStore) UpdateBotStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating bot status: %w", err)
	}
	return requireRow(res)
}

// UpdateBotName sets the display name of a bot.
func (s *SQLiteStore) UpdateBotName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating bot name: %w", err)
	}
	return requireRow(res)
}

// DeleteBot removes a bot record. Episode history cascades.
func (s *SQLiteStore) DeleteBot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting bot: %w", err)
	}
	return requireRow(res)
}

// AppendEpisode records one connection episode for a bot.
func (s *SQLiteStore) AppendEpisode(ctx context.Context, ep *Episode) error {
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now().UTC()
	}
	if ep.DisconnectedAt != nil && ep.DurationMin == 0 {
		ep.DurationMin = int(ep.DisconnectedAt.Sub(ep.ConnectedAt).Minutes())
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (id, bot_id, connected_at, disconnected_at, duration_min, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.BotID, ep.ConnectedAt, ep.DisconnectedAt, ep.DurationMin,
		nullable(ep.ErrorMessage), ep.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting episode: %w", err)
	}
	return nil
}

// ListEpisodes returns the most recent connection episodes for a bot.
func (s *SQLiteStore) ListEpisodes(ctx context.Context, botID string, limit int) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bot_id, connected_at, disconnected_at, duration_min, error_message, created_at
		 FROM episodes WHERE bot_id = ? ORDER BY created_at DESC LIMIT ?`, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying episodes: %w", err)
	}
	defer rows.Close()

	var eps []*Episode
	for rows.Next() {
		var ep Episode
		var errMsg sql.NullString
		if err := rows.Scan(&ep.ID, &ep.BotID, &ep.ConnectedAt, &ep.DisconnectedAt,
			&ep.DurationMin, &errMsg, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning episode: %w", err)
		}
		ep.ErrorMessage = errMsg.String
		eps = append(eps, &ep)
	}
	return eps, rows.Err()
}

// Setting retrieves a scalar setting value.
func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying setting: %w", err)
	}
	return value, nil
}

// SetSetting writes a scalar setting value, replacing any previous one.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing setting: %w", err)
	}
	return nil
}

// Stats returns fleet-wide aggregate counters.
func (s *SQLiteStore) Stats(ctx context.Context) (*GeneralStats, error) {
	stats := &GeneralStats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bots`).Scan(&stats.TotalBots); err != nil {
		return nil, fmt.Errorf("counting bots: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bots WHERE status = 'running'`).Scan(&stats.RunningBots); err != nil {
		return nil, fmt.Errorf("counting running bots: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_min), 0) FROM episodes`).Scan(&stats.TotalRuntimeMin); err != nil {
		return nil, fmt.Errorf("summing runtime: %w", err)
	}

	return stats, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
