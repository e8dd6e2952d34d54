// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret"

fleet:
  max_bots_per_user: 5
  max_reconnect_attempts: 3
  reconnect_delay: "2s"
  sweep_interval: "10s"
  connect_timeout: "4s"

versions:
  java: ["1.21.8", "1.21.7"]
  bedrock: ["1.21.94"]

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Fleet.MaxBotsPerUser != 5 {
		t.Errorf("Fleet.MaxBotsPerUser = %d, want 5", cfg.Fleet.MaxBotsPerUser)
	}
	if cfg.Fleet.MaxReconnectAttempts != 3 {
		t.Errorf("Fleet.MaxReconnectAttempts = %d, want 3", cfg.Fleet.MaxReconnectAttempts)
	}
	if cfg.Fleet.ReconnectDelay != 2*time.Second {
		t.Errorf("Fleet.ReconnectDelay = %v, want 2s", cfg.Fleet.ReconnectDelay)
	}
	if cfg.Fleet.SweepInterval != 10*time.Second {
		t.Errorf("Fleet.SweepInterval = %v, want 10s", cfg.Fleet.SweepInterval)
	}
	if cfg.Fleet.ConnectTimeout != 4*time.Second {
		t.Errorf("Fleet.ConnectTimeout = %v, want 4s", cfg.Fleet.ConnectTimeout)
	}
	if len(cfg.Versions.Java) != 2 || cfg.Versions.Java[0] != "1.21.8" {
		t.Errorf("Versions.Java = %v, want [1.21.8 1.21.7]", cfg.Versions.Java)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fleet.MaxBotsPerUser != DefaultMaxBotsPerUser {
		t.Errorf("MaxBotsPerUser = %d, want default %d", cfg.Fleet.MaxBotsPerUser, DefaultMaxBotsPerUser)
	}
	if cfg.Fleet.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("MaxReconnectAttempts = %d, want default %d", cfg.Fleet.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Fleet.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("ReconnectDelay = %v, want default %v", cfg.Fleet.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Fleet.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval = %v, want default %v", cfg.Fleet.SweepInterval, DefaultSweepInterval)
	}
	if len(cfg.Versions.Java) == 0 {
		t.Error("Versions.Java should have defaults")
	}
	if len(cfg.Versions.Bedrock) == 0 {
		t.Error("Versions.Bedrock should have defaults")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("MINEFLEET_TEST_SECRET", "expanded-secret")

	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "${MINEFLEET_TEST_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "expanded-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "expanded-secret")
	}
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "${MINEFLEET_DOES_NOT_EXIST}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "" {
		t.Errorf("Auth.JWTSecret = %q, want empty", cfg.Auth.JWTSecret)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "./test.db"

fleet:
  reconnect_delay: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "reconnect_delay") {
		t.Errorf("error should mention reconnect_delay, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing http_addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "negative quota",
			mutate:  func(c *Config) { c.Fleet.MaxBotsPerUser = -1 },
			wantErr: "max_bots_per_user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{HTTPAddr: "127.0.0.1:8080"},
				Database: DatabaseConfig{Path: "./test.db"},
			}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSupportedVersions(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if got := cfg.SupportedVersions("java"); len(got) == 0 {
		t.Error("expected java versions")
	}
	if got := cfg.SupportedVersions("bedrock"); len(got) == 0 {
		t.Error("expected bedrock versions")
	}
	if got := cfg.SupportedVersions("pocket"); got != nil {
		t.Errorf("expected nil for unknown edition, got %v", got)
	}
}
