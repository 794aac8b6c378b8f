// Package config loads the warden configuration file and provides defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level warden configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RequestRate     int        `yaml:"request_rate"` // coarse per-IP requests/minute guard
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing for the dashboard SPA.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// DatabaseConfig selects the durable store. Driver is "sqlite" (embedded
// default) or "postgres".
type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
}

// AuthConfig controls session issuance.
type AuthConfig struct {
	SessionSecret   string `yaml:"session_secret"`
	SessionLifetime string `yaml:"session_lifetime"`
	CookieSecure    bool   `yaml:"cookie_secure"`
}

// SecurityConfig controls abuse mitigation: the durable ban threshold, the
// security gate's storage-backed throttle, and the process-local limiters.
type SecurityConfig struct {
	MaxLoginAttempts int    `yaml:"max_login_attempts"`
	AttemptWindow    string `yaml:"attempt_window"`
	BanDuration      string `yaml:"ban_duration"`
	GateMaxAttempts  int    `yaml:"gate_max_attempts"`
	LoginRatePoints  int    `yaml:"login_rate_points"`
	LoginRateWindow  string `yaml:"login_rate_window"`
	GlobalRatePoints int    `yaml:"global_rate_points"`
	GlobalRateWindow string `yaml:"global_rate_window"`
	AttemptRetention string `yaml:"attempt_retention"`
}

// BootstrapConfig provisions the base admin account at startup.
type BootstrapConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// NotifyConfig controls outbound security alerts.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses a YAML configuration file. Environment variables
// referenced as ${VAR_NAME} in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-filled with the documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			RequestRate:     300,
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Auth: AuthConfig{
			SessionLifetime: "24h",
			CookieSecure:    true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 5,
			AttemptWindow:    "15m",
			BanDuration:      "1h",
			GateMaxAttempts:  10,
			LoginRatePoints:  5,
			LoginRateWindow:  "15m",
			GlobalRatePoints: 100,
			GlobalRateWindow: "1h",
			AttemptRetention: "720h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Duration parses s, falling back to def when s is empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
