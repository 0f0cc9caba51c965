package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug, which includes per-frame stream logs.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the charmbracelet/log console handler.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.format = formatText
		if pretty {
			c.format = formatPretty
		}
	}
}

// WithJSON selects slog's JSON handler, used for --log-file.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.format = formatText
		if json {
			c.format = formatJSON
		}
	}
}

// WithWriter adds an output. Records go to every writer added; with none,
// they go to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = append(c.writers, w)
	}
}

// WithSource reports the caller's file:line.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithComponent tags every record with component=name. The console handler
// shows it as a prefix instead.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}
