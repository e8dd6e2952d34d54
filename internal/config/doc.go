// Package config handles configuration loading for minefleet.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${MINEFLEET_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	fleet:
//	  reconnect_delay: "5s"
//	  sweep_interval: "30s"
//	  connect_timeout: "10s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/minefleet/minefleet.db"
//
// Fleet supervision:
//
//	fleet:
//	  max_bots_per_user: 3
//	  max_reconnect_attempts: 5
//	  reconnect_delay: "5s"
//	  sweep_interval: "30s"
//	  connect_timeout: "10s"
//
// Supported protocol versions per edition:
//
//	versions:
//	  java: ["1.21.8", "1.21.7"]
//	  bedrock: ["1.21.94", "1.21.93"]
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
