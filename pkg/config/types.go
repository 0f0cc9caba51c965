package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config represents the persistent relay configuration stored as config.toml
// in the .relay/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Dify    DifyConfig    `toml:"dify"`
	Server  ServerConfig  `toml:"server"`
	Auth    AuthConfig    `toml:"auth"`
	Storage StorageConfig `toml:"storage"`
	Events  EventsConfig  `toml:"events"`
	Client  ClientConfig  `toml:"client"`
}

// DifyConfig holds the upstream Dify app credentials.
type DifyConfig struct {
	BaseURL     string `toml:"base_url,omitempty"`
	APIKey      string `toml:"api_key,omitempty"`
	IdleTimeout string `toml:"idle_timeout,omitempty"`
}

// ServerConfig holds RPC server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// AuthConfig holds bearer token settings. JWTSecret is shared with the
// external auth provider that issues user tokens.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret,omitempty"`
	TokenTTL  string `toml:"token_ttl,omitempty"`
}

// StorageConfig selects where completed turns are persisted.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig configures turn event publishing. Publishing is disabled
// when no brokers are set.
type EventsConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running relay
// server (relay chat). Target is a full URL (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
	Token  string `toml:"token,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get    func(c *Config) string
	set    func(c *Config, v string) error
	secret bool
}

func durationSetter(key string, field func(c *Config) *string) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*field(c) = v
		return nil
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"dify.base_url": {
		get: func(c *Config) string { return c.Dify.BaseURL },
		set: func(c *Config, v string) error { c.Dify.BaseURL = v; return nil },
	},
	"dify.api_key": {
		get:    func(c *Config) string { return c.Dify.APIKey },
		set:    func(c *Config, v string) error { c.Dify.APIKey = v; return nil },
		secret: true,
	},
	"dify.idle_timeout": {
		get: func(c *Config) string { return c.Dify.IdleTimeout },
		set: durationSetter("dify.idle_timeout", func(c *Config) *string { return &c.Dify.IdleTimeout }),
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"auth.jwt_secret": {
		get:    func(c *Config) string { return c.Auth.JWTSecret },
		set:    func(c *Config, v string) error { c.Auth.JWTSecret = v; return nil },
		secret: true,
	},
	"auth.token_ttl": {
		get: func(c *Config) string { return c.Auth.TokenTTL },
		set: durationSetter("auth.token_ttl", func(c *Config) *string { return &c.Auth.TokenTTL }),
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			if !IsValidStorageDriver(v) {
				return fmt.Errorf("invalid value for storage.driver: %q (available: %s)", v, strings.Join(StorageDrivers(), ", "))
			}
			c.Storage.Driver = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get:    func(c *Config) string { return c.Storage.PostgresDSN },
		set:    func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
		secret: true,
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return c.Events.KafkaBrokers },
		set: func(c *Config, v string) error { c.Events.KafkaBrokers = v; return nil },
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
	"client.token": {
		get:    func(c *Config) string { return c.Client.Token },
		set:    func(c *Config, v string) error { c.Client.Token = v; return nil },
		secret: true,
	},
}

// Storage driver names accepted by storage.driver.
const (
	StorageInMemory = "inmemory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageDrivers returns the accepted storage.driver values.
func StorageDrivers() []string {
	return []string{StorageInMemory, StorageSQLite, StoragePostgres}
}

// IsValidStorageDriver reports whether name is an accepted storage.driver.
func IsValidStorageDriver(name string) bool {
	return slices.Contains(StorageDrivers(), name)
}

// KafkaBrokerList splits a comma separated broker string.
func KafkaBrokerList(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
