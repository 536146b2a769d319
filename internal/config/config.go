// Package config provides configuration loading for commtrayd: built-in
// defaults, then the TOML configuration file, then environment variable
// overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the daemon configuration.
type Config struct {
	Daemon  DaemonConfig  `toml:"daemon"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
}

// DaemonConfig controls the daemon's listening surfaces.
type DaemonConfig struct {
	// SocketPath is the unix socket the event stream is served on.
	SocketPath string `toml:"socket_path"`
	// MetricsListen is the Prometheus listen address; empty disables the
	// metrics endpoint.
	MetricsListen string `toml:"metrics_listen"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// File is the log file path; empty logs to stderr.
	File string `toml:"file"`
}

// StorageConfig locates the daemon's databases.
type StorageConfig struct {
	// NotificationsDB holds the published notification records.
	NotificationsDB string `toml:"notifications_db"`
	// ContactsDB holds the contact directory.
	ContactsDB string `toml:"contacts_db"`
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := dataDir()
	return Config{
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(runtimeDir(), "commtrayd.sock"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			NotificationsDB: filepath.Join(dataDir, "notifications.db"),
			ContactsDB:      filepath.Join(dataDir, "contacts.db"),
		},
	}
}

// Load reads the configuration. An empty path uses the default location; a
// missing file at the default location is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir(), "config.toml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file; defaults apply.
	default:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

// applyEnv overrides config values from COMMTRAYD_* variables, so env wins
// over the file.
func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"COMMTRAYD_SOCKET":           &cfg.Daemon.SocketPath,
		"COMMTRAYD_METRICS_LISTEN":   &cfg.Daemon.MetricsListen,
		"COMMTRAYD_LOG_LEVEL":        &cfg.Logging.Level,
		"COMMTRAYD_LOG_FILE":         &cfg.Logging.File,
		"COMMTRAYD_NOTIFICATIONS_DB": &cfg.Storage.NotificationsDB,
		"COMMTRAYD_CONTACTS_DB":      &cfg.Storage.ContactsDB,
	}
	for name, target := range overrides {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			*target = value
		}
	}
}

// normalize validates values and falls back to defaults on invalid input.
func normalize(cfg *Config) {
	level := strings.ToLower(cfg.Logging.Level)
	if level == "warning" {
		level = "warn"
	}
	if !validLevels[level] {
		level = "info"
	}
	cfg.Logging.Level = level
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "commtrayd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "commtrayd")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "commtrayd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "commtrayd")
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
