package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AccessLog writes one line per request through logger. Mount it after
// RequestID so the id is available, and before chi's Recoverer so panics
// are reported through the same logger.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return chimiddleware.RequestLogger(&accessLogFormatter{logger: logger})
}

type accessLogFormatter struct {
	logger *slog.Logger
}

func (f *accessLogFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	return &accessLogEntry{
		ctx: r.Context(),
		logger: f.logger.With(
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"request_id", r.Header.Get(RequestIDHeader),
		),
	}
}

type accessLogEntry struct {
	ctx    context.Context
	logger *slog.Logger
}

func (e *accessLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(e.ctx, level, "request completed",
		"status", status,
		"bytes", bytes,
		"duration", elapsed,
	)
}

func (e *accessLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.ErrorContext(e.ctx, "panic while serving request", "panic", v, "stack", string(stack))
}
