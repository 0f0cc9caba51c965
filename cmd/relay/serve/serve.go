// Package servecmder provides the serve command that runs the relay RPC server.
package servecmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/relay/api"
	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
)

type ServeCommander struct {
	listen        string
	difyBaseURL   string
	difyAPIKey    string
	idleTimeout   string
	jwtSecret     string
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	kafkaBrokers  string
	kafkaTopic    string
	logFile       string
	workers       uint

	configDir string
	debug     bool
	viper     *viper.Viper
	logger    *slog.Logger
}

// serveFlags are bound to viper so flags override env, file and defaults.
var serveFlags = []string{
	config.FlagListen,
	config.FlagDifyBaseURL,
	config.FlagDifyAPIKey,
	config.FlagIdleTimeout,
	config.FlagJWTSecret,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the relay RPC server.

The server authenticates callers with HS256 bearer tokens, forwards their
chat calls to Dify as the token subject, and streams Dify's events back.
Finished turns are stored with the configured storage driver and, when
Kafka brokers are set, published as relay.turn.completed events.

Settings come from flags, RELAY_* environment variables, config.toml and
defaults, in that order. Edits to config.toml while the server runs
replace the Dify base URL and API key without a restart.

Examples:
  relay serve --dify-base-url https://api.dify.ai/v1 --dify-api-key app-...
  relay serve --storage-driver postgres --postgres-dsn postgres://localhost/relay
  RELAY_AUTH_JWT_SECRET=s3cret relay serve --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the relay RPC server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagDifyBaseURL, &cmder.difyBaseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagDifyAPIKey, &cmder.difyAPIKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagIdleTimeout, &cmder.idleTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagJWTSecret, &cmder.jwtSecret)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().UintVar(&cmder.workers, "workers", 0, "Number of turn persistence workers (default 3)")

	return cmd
}

// settings is the resolved server configuration.
type settings struct {
	listen      string
	baseURL     string
	apiKey      string
	jwtSecret   string
	idleTimeout string
}

func (c *ServeCommander) settings() settings {
	return settings{
		listen:      c.viper.GetString("server.listen"),
		baseURL:     c.viper.GetString("dify.base_url"),
		apiKey:      c.viper.GetString("dify.api_key"),
		jwtSecret:   c.viper.GetString("auth.jwt_secret"),
		idleTimeout: c.viper.GetString("dify.idle_timeout"),
	}
}

func (c *ServeCommander) run() error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	s := c.settings()
	if s.jwtSecret == "" {
		return errors.New("auth.jwt_secret is not set: pass --jwt-secret, set RELAY_AUTH_JWT_SECRET, or run \"relay config set auth.jwt_secret <secret>\"")
	}

	idle, err := parseIdleTimeout(s.idleTimeout)
	if err != nil {
		return err
	}

	client := dify.New(dify.Config{
		BaseURL:     s.baseURL,
		APIKey:      s.apiKey,
		IdleTimeout: idle,
		Logger:      log,
	})
	if s.baseURL == "" || s.apiKey == "" {
		log.Warn("dify credentials incomplete, chat calls will fail until they are configured")
	}

	var driver storage.Driver
	step := fmt.Sprintf("Opening %s turn store", c.viper.GetString("storage.driver"))
	if err := cliui.Step(os.Stderr, step, func() (err error) {
		driver, err = c.newDriver()
		return err
	}); err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: s.listen,
		JWTSecret:  s.jwtSecret,
		Workers:    c.workers,
	}, client, driver, publisher, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if config.WatchConfig(c.viper, log, func(v *viper.Viper) {
		client.SetCredentials(v.GetString("dify.base_url"), v.GetString("dify.api_key"))
		log.Info("dify credentials reloaded", "base_url", client.BaseURL())
	}) {
		log.Debug("watching config file", "file", c.viper.ConfigFileUsed())
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
	}

	if err := server.Shutdown(); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// newLogger builds the console logger, teed to a JSON file with --log-file.
func (c *ServeCommander) newLogger() (*slog.Logger, func(), error) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithComponent("serve"))
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}
