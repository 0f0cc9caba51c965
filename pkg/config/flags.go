package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// (e.g. --target on "relay chat" and "relay token") cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags.
const (
	FlagListen        = "listen"
	FlagDifyBaseURL   = "dify-base-url"
	FlagDifyAPIKey    = "dify-api-key"
	FlagIdleTimeout   = "idle-timeout"
	FlagJWTSecret     = "jwt-secret"
	FlagTokenTTL      = "token-ttl"
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
	FlagTarget        = "target"
	FlagToken         = "token"
)

// Flags is the registry shared by every relay command.
var Flags = FlagSet{
	FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the RPC server to listen on"},
	FlagDifyBaseURL:   {Name: "dify-base-url", ViperKey: "dify.base_url", Description: "Dify API base URL (e.g. https://api.dify.ai/v1)"},
	FlagDifyAPIKey:    {Name: "dify-api-key", ViperKey: "dify.api_key", Description: "Dify app API key"},
	FlagIdleTimeout:   {Name: "idle-timeout", ViperKey: "dify.idle_timeout", Description: "Abort a Dify stream after this long without data (0 disables)"},
	FlagJWTSecret:     {Name: "jwt-secret", ViperKey: "auth.jwt_secret", Description: "HMAC secret used to verify bearer tokens"},
	FlagTokenTTL:      {Name: "token-ttl", ViperKey: "auth.token_ttl", Description: "Lifetime of minted tokens"},
	FlagStorageDriver: {Name: "storage-driver", ViperKey: "storage.driver", Description: "Turn storage driver (inmemory, sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: <config dir>/relay.sqlite)"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagKafkaBrokers:  {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma separated Kafka brokers for turn events (empty disables)"},
	FlagKafkaTopic:    {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for turn events"},
	FlagTarget:        {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "relay server URL"},
	FlagToken:         {Name: "token", ViperKey: "client.token", Description: "Bearer token for the relay server"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
