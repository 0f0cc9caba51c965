package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/relay/api/header"
	"github.com/papercomputeco/relay/api/worker"
	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
)

const (
	defaultShutdownTimeout   = 5 * time.Second
	defaultHeartbeatInterval = 5 * time.Second
	defaultRequestTimeout    = 2 * time.Minute
	bodyLimit              = 16 << 20
)

// Server is the relay RPC server.
type Server struct {
	config   Config
	dify     *dify.Client
	driver   storage.Driver
	pool     *worker.Pool
	metrics  *metrics
	headers  *header.Handler
	validate *validator.Validate
	logger   *slog.Logger
	app      *fiber.App

	// ctx outlives every request and is cancelled on Shutdown. Upstream
	// calls derive from it rather than from the fiber context, which
	// fasthttp recycles once the handler returns.
	ctx     context.Context
	cancel  context.CancelFunc
	streams sync.WaitGroup
}

// NewServer creates a new relay server. The driver and publisher are
// injected so the CLI can pick backends from configuration; publisher may
// be nil.
func NewServer(config Config, client *dify.Client, driver storage.Driver, publisher eventstream.Publisher, log *slog.Logger) (*Server, error) {
	if config.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if client == nil {
		return nil, errors.New("dify client is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = defaultHeartbeatInterval
	}

	m := newMetrics()

	pool, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  publisher,
		NumWorkers: config.Workers,
		Source: eventstream.EventSource{
			Service:  "relay",
			Provider: "dify",
			BaseURL:  client.BaseURL(),
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		dify:     client,
		driver:   driver,
		pool:     pool,
		metrics:  m,
		headers:  header.NewHandler(),
		validate: validator.New(),
		logger:   log,
		app:      app,
		ctx:      ctx,
		cancel:   cancel,
	}

	app.Use(m.middleware)

	app.Get("/ping", s.handlePing)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))

	// JSON answers may be compressed; the event stream never is.
	gzipJSON := compress.New()

	rpc := app.Group("/rpc", s.requireAuth)
	rpc.Post(trimRPC(RouteChatMessages), gzipJSON, s.handleChatMessages)
	rpc.Post(trimRPC(RouteChatMessagesStream), s.handleChatMessagesStream)
	rpc.Post(trimRPC(RouteChatMessagesStop), s.handleChatMessagesStop)
	rpc.Post(trimRPC(RouteFilePreview), s.handleFilePreview)
	rpc.Post(trimRPC(RouteFileUpload), s.handleFileUpload)
	rpc.Post(trimRPC(RouteTurns), gzipJSON, s.handleTurns)

	return s, nil
}

func trimRPC(route string) string {
	return route[len("/rpc"):]
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting relay server",
		"listen", s.config.ListenAddr,
		"dify", s.dify.BaseURL(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"dify", s.dify.BaseURL(),
	)
	return s.app.Listener(listener)
}

// Shutdown stops accepting requests, ends open streams with an error event,
// and waits for pending turns to be stored.
func (s *Server) Shutdown() error {
	s.cancel()

	err := s.app.ShutdownWithTimeout(s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.config.ShutdownTimeout):
		s.logger.Warn("streams still open after shutdown timeout")
	}

	s.pool.Close()
	return err
}
