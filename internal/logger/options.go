package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Format selects the handler New builds.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Option configures a Logger created with New.
type Option func(*config)

// WithLevel sets the minimum level that is written.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithFormat picks the output handler. Unknown formats fall back to text.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithWriters replaces the output writers. Defaults to os.Stdout.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// ParseLevel maps a LOG_LEVEL value such as "debug" or "WARN" onto a slog
// level. Empty or unrecognised values yield Info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
