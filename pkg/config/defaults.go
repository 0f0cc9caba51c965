package config

const (
	defaultIdleTimeout   = "2m"
	defaultServerListen  = ":8080"
	defaultTokenTTL      = "24h"
	defaultStorageDriver = StorageSQLite
	defaultKafkaTopic    = "relay.turns"
	defaultClientTarget  = "http://localhost:8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. The Dify base URL
// and API key have no defaults: calls fail until they are configured.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Dify: DifyConfig{
			IdleTimeout: defaultIdleTimeout,
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
		Auth: AuthConfig{
			TokenTTL: defaultTokenTTL,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
