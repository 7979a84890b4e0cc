// Package config assembles server settings from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/env"
)

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
	Schema string `yaml:"schema"`
}

// AdminConfig is the credential pair guarding the lead tables.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Secret   string `yaml:"secret"`
}

type MetaConfig struct {
	PixelID     string `yaml:"pixel_id"`
	AccessToken string `yaml:"access_token"`
}

type Config struct {
	Port               string         `yaml:"port"`
	DevMode            bool           `yaml:"dev_mode"`
	ScriptPath         string         `yaml:"script_path"`
	StaticDir          string         `yaml:"static_dir"`
	TranscriptFont     string         `yaml:"transcript_font"`
	SessionIdleTimeout time.Duration  `yaml:"session_idle_timeout"`
	Log                LogConfig      `yaml:"log"`
	Database           DatabaseConfig `yaml:"database"`
	Admin              AdminConfig    `yaml:"admin"`
	Meta               MetaConfig     `yaml:"meta"`
}

const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "admin1234"
)

func Defaults() Config {
	return Config{
		Port:               "8080",
		SessionIdleTimeout: 30 * time.Minute,
		Log:                LogConfig{Level: "info", Format: "text"},
		Database:           DatabaseConfig{Driver: "sqlite", URL: "file:chatfunnel.db"},
		Admin:              AdminConfig{Email: DefaultAdminEmail, Password: DefaultAdminPassword},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(filepath.Clean(path)) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = env.GetString("PORT", c.Port)
	c.ScriptPath = env.GetString("SCRIPT_PATH", c.ScriptPath)
	c.StaticDir = env.GetString("STATIC_DIR", c.StaticDir)
	c.TranscriptFont = env.GetString("TRANSCRIPT_FONT", c.TranscriptFont)

	c.Log.Level = env.GetString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env.GetString("LOG_FORMAT", c.Log.Format)
	c.Log.File = env.GetString("LOG_FILE", c.Log.File)

	c.Database.Driver = env.GetString("DB_DRIVER", c.Database.Driver)
	c.Database.URL = env.GetString("DATABASE_URL", c.Database.URL)
	c.Database.Schema = env.GetString("DB_SCHEMA", c.Database.Schema)
	// leads.Open takes "postgres" as an alias for the pgx driver.
	if strings.EqualFold(c.Database.Driver, "postgres") {
		c.Database.Driver = "pgx"
	}

	c.Admin.Email = env.GetString("ADMIN_EMAIL", c.Admin.Email)
	c.Admin.Password = env.GetString("ADMIN_PASSWORD", c.Admin.Password)
	c.Admin.Secret = env.GetString("ADMIN_SECRET", c.Admin.Secret)

	c.Meta.PixelID = env.GetString("META_PIXEL_ID", c.Meta.PixelID)
	c.Meta.AccessToken = env.GetString("META_ACCESS_TOKEN", c.Meta.AccessToken)

	dev, err := env.GetBool("DEV_MODE", c.DevMode)
	if err != nil {
		return fmt.Errorf("DEV_MODE: %w", err)
	}
	c.DevMode = dev

	if v := env.GetString("SESSION_IDLE_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_IDLE_TIMEOUT: %w", err)
		}
		c.SessionIdleTimeout = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port %q is not a number", c.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q: want text or json", c.Log.Format)
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("database driver %q: want sqlite or pgx", c.Database.Driver)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("session idle timeout must be positive, got %s", c.SessionIdleTimeout)
	}
	if c.Admin.Email == "" || c.Admin.Password == "" {
		return errors.New("admin email and password are required")
	}
	return nil
}

// DefaultAdmin reports whether the built-in admin credentials are in use.
func (c *Config) DefaultAdmin() bool {
	return c.Admin.Email == DefaultAdminEmail && c.Admin.Password == DefaultAdminPassword
}

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + c.Port }
