// Package config loads and validates glassfile YAML configuration.
// It applies defaults so the daemon can rely on fully populated values.
// Configuration is read once at startup and never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TLSConfig holds optional TLS certificate paths.
type TLSConfig struct {
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Bind string    `yaml:"bind"`
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`
}

// StorageConfig holds storage root settings.
type StorageConfig struct {
	Directory     string `yaml:"directory"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	// AllowedExtensions restricts upload/rename targets. Absent means
	// unrestricted; entries are normalized to lowercase with a dot.
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// SecurityConfig holds the immutable credential policy.
type SecurityConfig struct {
	AdminPasswordHash      string   `yaml:"admin_password_hash"`
	APIKeys                []string `yaml:"api_keys"`
	IPWhitelist            []string `yaml:"ip_whitelist"`
	SessionLifetimeSeconds int      `yaml:"session_lifetime_seconds"`
	LoginAttemptsPerMinute int      `yaml:"login_attempts_per_minute"`
}

// SessionsConfig selects the session store backend.
type SessionsConfig struct {
	// DBPath enables the sqlite-backed store; empty keeps sessions
	// in process memory.
	DBPath string `yaml:"db_path"`
}

// Config mirrors the config.yaml schema.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// Load reads a YAML config file, applies defaults, and validates it.
// The storage directory is created if missing and resolved to an
// absolute path, fixing the storage root for the process lifetime.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}

	dir, err := filepath.Abs(strings.TrimSpace(c.Storage.Directory))
	if err != nil {
		return Config{}, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Config{}, fmt.Errorf("create storage directory: %w", err)
	}
	c.Storage.Directory = dir

	c.Storage.AllowedExtensions = normalizeExtensions(c.Storage.AllowedExtensions)
	c.Server.TLS.CertPath = strings.TrimSpace(c.Server.TLS.CertPath)
	c.Server.TLS.KeyPath = strings.TrimSpace(c.Server.TLS.KeyPath)
	c.Sessions.DBPath = strings.TrimSpace(c.Sessions.DBPath)
	return c, nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Bind == "" {
		c.Server.Bind = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Directory == "" {
		c.Storage.Directory = "./data"
	}
	if c.Storage.MaxFileSizeMB == 0 {
		c.Storage.MaxFileSizeMB = 100
	}
	if c.Security.SessionLifetimeSeconds == 0 {
		c.Security.SessionLifetimeSeconds = 3600
	}
	if c.Security.LoginAttemptsPerMinute == 0 {
		c.Security.LoginAttemptsPerMinute = 10
	}
}

// validate performs basic sanity checks for required fields and ranges.
func validate(c *Config) error {
	if strings.TrimSpace(c.Security.AdminPasswordHash) == "" {
		return errors.New("security.admin_password_hash is required; run setup")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port is invalid")
	}
	if c.Storage.MaxFileSizeMB < 1 || c.Storage.MaxFileSizeMB > 102400 {
		return errors.New("storage.max_file_size_mb is invalid")
	}
	if c.Security.SessionLifetimeSeconds < 1 {
		return errors.New("security.session_lifetime_seconds is invalid")
	}
	cp := strings.TrimSpace(c.Server.TLS.CertPath)
	kp := strings.TrimSpace(c.Server.TLS.KeyPath)
	if (cp == "") != (kp == "") {
		return errors.New("server.tls.cert_path and server.tls.key_path must be set together")
	}
	for _, k := range c.Security.APIKeys {
		if strings.TrimSpace(k) == "" {
			return errors.New("security.api_keys must not contain empty keys")
		}
	}
	return nil
}

// normalizeExtensions lowercases entries and guarantees a leading dot.
// A nil input stays nil (unrestricted); an explicit empty list stays a
// restriction that allows nothing.
func normalizeExtensions(exts []string) []string {
	if exts == nil {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// MaxFileSizeBytes converts the configured cap to bytes.
func (c Config) MaxFileSizeBytes() int64 {
	return int64(c.Storage.MaxFileSizeMB) << 20
}
