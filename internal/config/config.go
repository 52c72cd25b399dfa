// Package config loads subwatch settings from a YAML file and SUBWATCH_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/subwatch/internal/store"
	"github.com/lepinkainen/subwatch/pkg/filesystem"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "config.yaml"

// Config holds the central application configuration
type Config struct {
	Telegram struct {
		Token   string `mapstructure:"token"`
		Timeout int    `mapstructure:"timeout"` // long polling timeout in seconds
	} `mapstructure:"telegram"`

	Poll struct {
		Interval     time.Duration `mapstructure:"interval"`
		InitialDelay time.Duration `mapstructure:"initial_delay"`
		Limit        int           `mapstructure:"limit"` // items fetched per feed
	} `mapstructure:"poll"`

	Reddit struct {
		BaseURL   string        `mapstructure:"base_url"`
		Source    string        `mapstructure:"source"` // json or rss
		UserAgent string        `mapstructure:"user_agent"`
		MinDelay  time.Duration `mapstructure:"min_delay"` // shared across users, 0 disables
		ExistsTTL time.Duration `mapstructure:"exists_ttl"`
	} `mapstructure:"reddit"`

	Storage struct {
		Backend string `mapstructure:"backend"`
		Path    string `mapstructure:"path"` // empty selects DefaultStoragePath
	} `mapstructure:"storage"`

	HTTP struct {
		Addr string `mapstructure:"addr"` // empty disables the server
	} `mapstructure:"http"`
}

// Feed sources.
const (
	SourceJSON = "json"
	SourceRSS  = "rss"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.timeout", 60)

	v.SetDefault("poll.interval", 5*time.Minute)
	v.SetDefault("poll.initial_delay", time.Second)
	v.SetDefault("poll.limit", 15)

	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.source", SourceJSON)
	v.SetDefault("reddit.user_agent", "")
	// one throttle is shared by every user, so it is off unless asked for
	v.SetDefault("reddit.min_delay", time.Duration(0))
	v.SetDefault("reddit.exists_ttl", 24*time.Hour)

	v.SetDefault("storage.backend", store.BackendSQLite)
	v.SetDefault("storage.path", "")

	v.SetDefault("http.addr", "")
}

// LoadConfig loads the configuration from a file. A missing file is not an
// error; defaults and environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	path = filesystem.ResolvePath(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SUBWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Storage.Path == "" {
		config.Storage.Path = DefaultStoragePath(config.Storage.Backend)
	}
	return &config, nil
}

// DefaultStoragePath is the storage location used when none is configured:
// a database file for sqlite and a directory of user files for yaml.
func DefaultStoragePath(backend string) string {
	switch backend {
	case store.BackendYAML:
		return "state"
	case store.BackendSQLite:
		return "subwatch.db"
	default:
		return ""
	}
}

// isNotFound reports a missing config file. SetConfigFile makes viper
// surface the os error instead of ConfigFileNotFoundError.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.Limit <= 0 || c.Poll.Limit > 100 {
		return fmt.Errorf("poll.limit must be between 1 and 100, got %d", c.Poll.Limit)
	}
	switch c.Reddit.Source {
	case SourceJSON, SourceRSS:
	default:
		return fmt.Errorf("unknown reddit.source %q", c.Reddit.Source)
	}
	return store.ValidateBackend(c.Storage.Backend)
}
