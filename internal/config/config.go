// Package config loads the server configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends for the identity store
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Config is the complete server configuration
type Config struct {
	Server     Server      `yaml:"server"`
	Storage    Storage     `yaml:"storage"`
	Towns      Towns       `yaml:"towns"`
	Pending    Pending     `yaml:"pending"`
	Stats      Stats       `yaml:"stats"`
	Moderators []Moderator `yaml:"moderators"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Storage struct {
	Type     string `yaml:"type"`
	RedisURL string `yaml:"redis_url"`
	// NotifyChannel is the redis channel pending-town events are published on
	NotifyChannel string `yaml:"notify_channel"`
}

type Towns struct {
	Dir string `yaml:"dir"`
	// LegacyMode makes every anonymous player share LegacyPath
	LegacyMode                 bool   `yaml:"legacy_mode"`
	LegacyPath                 string `yaml:"legacy_path"`
	InitialDonuts              int64  `yaml:"initial_donuts"`
	MaxDonuts                  int64  `yaml:"max_donuts"`
	DeleteExistingUserOnImport bool   `yaml:"delete_existing_user_on_import"`
}

type Pending struct {
	Dir             string        `yaml:"dir"`
	DBPath          string        `yaml:"db_path"`
	StatusRetries   int           `yaml:"status_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	DaysToKeep      int           `yaml:"days_to_keep"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type Stats struct {
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

// Moderator is a dashboard account allowed to decide pending towns
type Moderator struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		Server: Server{Port: 8080},
		Storage: Storage{
			Type:          StorageTypeMemory,
			RedisURL:      "redis://localhost:6379",
			NotifyChannel: "townserver:pending-towns",
		},
		Towns: Towns{
			Dir:           "towns",
			LegacyPath:    filepath.Join("towns", "mytown.pb"),
			InitialDonuts: 0,
			MaxDonuts:     999999,
		},
		Pending: Pending{
			Dir:             "pending_towns",
			DBPath:          filepath.Join("data", "pending_towns.db"),
			StatusRetries:   5,
			RetryDelay:      100 * time.Millisecond,
			DaysToKeep:      30,
			CleanupInterval: 24 * time.Hour,
		},
		Stats: Stats{
			ConnectionTimeout: 10 * time.Minute,
			SweepInterval:     time.Minute,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv reads an optional .env file into the process environment and then
// applies TOWNSERVER_* overrides to cfg.
func LoadEnv(cfg *Config, envFiles ...string) error {
	var existing []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return err
		}
	}
	return cfg.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var err error
	parse := func(key string, set func(string) error) {
		if v := getenv(key); v != "" && err == nil {
			if perr := set(v); perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
			}
		}
	}

	str("TOWNSERVER_HOST", &c.Server.Host)
	parse("TOWNSERVER_PORT", func(v string) (e error) { c.Server.Port, e = strconv.Atoi(v); return })
	str("TOWNSERVER_STORAGE_TYPE", &c.Storage.Type)
	str("TOWNSERVER_REDIS_URL", &c.Storage.RedisURL)
	str("TOWNSERVER_TOWNS_DIR", &c.Towns.Dir)
	str("TOWNSERVER_LEGACY_PATH", &c.Towns.LegacyPath)
	parse("TOWNSERVER_LEGACY_MODE", func(v string) (e error) { c.Towns.LegacyMode, e = strconv.ParseBool(v); return })
	parse("TOWNSERVER_INITIAL_DONUTS", func(v string) (e error) { c.Towns.InitialDonuts, e = strconv.ParseInt(v, 10, 64); return })
	parse("TOWNSERVER_MAX_DONUTS", func(v string) (e error) { c.Towns.MaxDonuts, e = strconv.ParseInt(v, 10, 64); return })
	parse("TOWNSERVER_DELETE_USER_ON_IMPORT", func(v string) (e error) {
		c.Towns.DeleteExistingUserOnImport, e = strconv.ParseBool(v)
		return
	})
	str("TOWNSERVER_PENDING_DIR", &c.Pending.Dir)
	str("TOWNSERVER_PENDING_DB", &c.Pending.DBPath)
	return err
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageTypeMemory, StorageTypeRedis:
	default:
		return fmt.Errorf("invalid storage type %q: must be 'memory' or 'redis'", c.Storage.Type)
	}
	if c.Towns.Dir == "" {
		return fmt.Errorf("towns.dir is required")
	}
	if c.Towns.MaxDonuts < 0 {
		return fmt.Errorf("towns.max_donuts must not be negative")
	}
	if c.Pending.StatusRetries < 1 {
		return fmt.Errorf("pending.status_retries must be at least 1")
	}
	return nil
}
