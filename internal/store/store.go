// ABOUTME: Store interface and data types for minefleet persistence
// ABOUTME: Defines User, Bot, Episode structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Bot lifecycle status values
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusError   = "error"
)

// Game editions
const (
	EditionJava    = "java"
	EditionBedrock = "bedrock"
)

// Setting keys seeded on first run
const (
	SettingMaxBotsPerUser = "max_bots_per_user"
)

// User represents an account that owns bots. ChatID is the opaque identifier
// assigned by the external chat platform.
type User struct {
	ID        string
	ChatID    string
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bot is the durable identity of a managed game client.
type Bot struct {
	ID        string
	OwnerID   string
	Name      string
	Host      string
	Port      int
	Version   string
	Edition   string // "java" or "bedrock"
	Status    string // "stopped", "running", "error"
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Episode is one connection attempt's historical record: when the bot
// connected, when it dropped, and the error that ended it, if any.
type Episode struct {
	ID             string
	BotID          string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
	DurationMin    int
	ErrorMessage   string
	CreatedAt      time.Time
}

// GeneralStats aggregates fleet-wide counters for reporting.
type GeneralStats struct {
	TotalUsers        int
	TotalBots         int
	RunningBots       int
	TotalRuntimeMin   int
	ActiveInstanceCnt int // filled in by the fleet, not the store
}

// Store defines the interface for bot and user persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByChatID(ctx context.Context, chatID string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)

	// Bots
	CreateBot(ctx context.Context, bot *Bot) error
	GetBot(ctx context.Context, id string) (*Bot, error)
	ListBotsByOwner(ctx context.Context, ownerID string) ([]*Bot, error)
	UpdateBotStatus(ctx context.Context, id, status string) error
	UpdateBotName(ctx context.Context, id, name string) error
	DeleteBot(ctx context.Context, id string) error

	// Connection episodes (append-only history)
	AppendEpisode(ctx context.Context, ep *Episode) error
	ListEpisodes(ctx context.Context, botID string, limit int) ([]*Episode, error)

	// Settings
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Aggregates
	Stats(ctx context.Context) (*GeneralStats, error)

	// Close releases any resources held by the store
	Close() error
}
