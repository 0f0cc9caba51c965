package servecmder

import (
	"context"
	"fmt"
	"time"

	"github.com/papercomputeco/relay/cmd/relay/sqlitepath"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/eventstream/kafka"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/storage/postgres"
	"github.com/papercomputeco/relay/pkg/storage/sqlite"
)

const connectTimeout = 10 * time.Second

// newDriver opens the turn store selected by storage.driver.
func (c *ServeCommander) newDriver() (storage.Driver, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch name := c.viper.GetString("storage.driver"); name {
	case config.StorageInMemory:
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.StorageSQLite:
		path, err := sqlitepath.ResolveSQLitePath(c.viper.GetString("storage.sqlite_path"), c.configDir)
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case config.StoragePostgres:
		dsn := c.viper.GetString("storage.postgres_dsn")
		if dsn == "" {
			return nil, fmt.Errorf("storage.driver is %q but storage.postgres_dsn is not set", name)
		}
		driver, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", name)
	}
}

// newPublisher returns a Kafka publisher, or nil when no brokers are set.
func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := config.KafkaBrokerList(c.viper.GetString("events.kafka_brokers"))
	if len(brokers) == 0 {
		return nil, nil
	}

	topic := c.viper.GetString("events.kafka_topic")
	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   topic,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing turn events", "brokers", brokers, "topic", topic)
	return publisher, nil
}

// parseIdleTimeout accepts a Go duration; "0" or empty disables the timeout.
func parseIdleTimeout(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid dify.idle_timeout %q: %w", v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid dify.idle_timeout %q: must not be negative", v)
	}
	return d, nil
}
