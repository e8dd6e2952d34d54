// ABOUTME: Configuration loading and parsing for minefleet
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete minefleet configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Fleet    FleetConfig    `yaml:"fleet"`
	Versions VersionsConfig `yaml:"versions"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// FleetConfig holds fleet supervision timing and quota configuration
type FleetConfig struct {
	MaxBotsPerUser       int           `yaml:"max_bots_per_user"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `yaml:"-"`
	SweepInterval        time.Duration `yaml:"-"`
	ConnectTimeout       time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReconnectDelayRaw string `yaml:"reconnect_delay"`
	SweepIntervalRaw  string `yaml:"sweep_interval"`
	ConnectTimeoutRaw string `yaml:"connect_timeout"`
}

// VersionsConfig lists the supported protocol versions per game edition
type VersionsConfig struct {
	Java    []string `yaml:"java"`
	Bedrock []string `yaml:"bedrock"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file omits a value.
const (
	DefaultMaxBotsPerUser       = 3
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 5 * time.Second
	DefaultSweepInterval        = 30 * time.Second
	DefaultConnectTimeout       = 10 * time.Second
)

// DefaultJavaVersions and DefaultBedrockVersions seed the supported-versions
// lists when the config file does not override them.
var (
	DefaultJavaVersions    = []string{"1.21.8", "1.21.7", "1.21.6", "1.21.5", "1.21.4"}
	DefaultBedrockVersions = []string{"1.21.94", "1.21.93", "1.21.90", "1.21.70", "1.21.50"}
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in zero-valued fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Fleet.MaxBotsPerUser == 0 {
		c.Fleet.MaxBotsPerUser = DefaultMaxBotsPerUser
	}
	if c.Fleet.MaxReconnectAttempts == 0 {
		c.Fleet.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Fleet.ReconnectDelay == 0 {
		c.Fleet.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Fleet.SweepInterval == 0 {
		c.Fleet.SweepInterval = DefaultSweepInterval
	}
	if c.Fleet.ConnectTimeout == 0 {
		c.Fleet.ConnectTimeout = DefaultConnectTimeout
	}
	if len(c.Versions.Java) == 0 {
		c.Versions.Java = append([]string(nil), DefaultJavaVersions...)
	}
	if len(c.Versions.Bedrock) == 0 {
		c.Versions.Bedrock = append([]string(nil), DefaultBedrockVersions...)
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Fleet.MaxBotsPerUser < 1 {
		return fmt.Errorf("fleet.max_bots_per_user must be positive")
	}

	if c.Fleet.MaxReconnectAttempts < 1 {
		return fmt.Errorf("fleet.max_reconnect_attempts must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Fleet.ReconnectDelayRaw != "" {
		cfg.Fleet.ReconnectDelay, err = time.ParseDuration(cfg.Fleet.ReconnectDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_delay %q: %w", cfg.Fleet.ReconnectDelayRaw, err)
		}
	}

	if cfg.Fleet.SweepIntervalRaw != "" {
		cfg.Fleet.SweepInterval, err = time.ParseDuration(cfg.Fleet.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Fleet.SweepIntervalRaw, err)
		}
	}

	if cfg.Fleet.ConnectTimeoutRaw != "" {
		cfg.Fleet.ConnectTimeout, err = time.ParseDuration(cfg.Fleet.ConnectTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing connect_timeout %q: %w", cfg.Fleet.ConnectTimeoutRaw, err)
		}
	}

	return nil
}

// SupportedVersions returns the supported version list for the given edition,
// or nil when the edition is unknown.
func (c *Config) SupportedVersions(edition string) []string {
	switch edition {
	case "java":
		return c.Versions.Java
	case "bedrock":
		return c.Versions.Bedrock
	default:
		return nil
	}
}
