// Package api provides the relay RPC server: authenticated HTTP endpoints
// that forward chat calls to Dify and stream its events back to clients.
package api

import "time"

// Config is the RPC server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// JWTSecret verifies the HS256 bearer tokens on /rpc routes.
	JWTSecret string

	// ShutdownTimeout bounds how long Shutdown waits for open streams to
	// finish after they have been told to stop. Defaults to 5s.
	ShutdownTimeout time.Duration

	// Workers is the number of turn persistence workers.
	Workers uint

	// RequestTimeout bounds each blocking upstream call (chat, stop, file
	// preview and upload). fasthttp does not report a client that hangs up
	// while a handler runs, so this is what ends an abandoned call.
	// Defaults to 2m.
	RequestTimeout time.Duration

	// HeartbeatInterval is how often an idle relayed stream gets a ping
	// frame. A dropped client is noticed on the first failed write, so this
	// bounds how long an abandoned upstream request stays open. Defaults to
	// 5s; a negative value disables heartbeats.
	HeartbeatInterval time.Duration
}
