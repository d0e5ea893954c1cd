// Package logging provides AICore's structured, context-correlated
// logger: a thin wrapper over log/slog that redacts sensitive substrings
// before they reach the sink. Grounded on the teacher's
// internal/observability.Logger, trimmed to the request_id/session_id
// correlation this runtime actually carries.
package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Logger wraps slog with request/session correlation and redaction.
type Logger struct {
	logger  *slog.Logger
	redacts []*regexp.Regexp
}

// Config configures the logger.
type Config struct {
	Level          string // debug, info, warn, error
	Format         string // json or text
	Output         io.Writer
	AddSource      bool
	RedactPatterns []string
}

// ContextKey namespaces context values this package reads/writes.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	SessionIDKey ContextKey = "session_id"
	PlanIDKey    ContextKey = "plan_id"
)

// DefaultRedactPatterns covers common secret shapes so they never reach
// a log sink verbatim.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["']?([a-zA-Z0-9_\-]{16,})["']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["']?([^\s"']{8,})["']?`,
	`sk-[a-zA-Z0-9]{20,}`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
}

// New builds a Logger. Empty Level/Format default to info/json.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}

	opts := &slog.HandlerOptions{Level: levelFromString(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	patterns := append(append([]string{}, DefaultRedactPatterns...), cfg.RedactPatterns...)
	redacts := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{logger: slog.New(handler), redacts: redacts}
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) { l.log(ctx, slog.LevelDebug, msg, args...) }
func (l *Logger) Info(ctx context.Context, msg string, args ...any)  { l.log(ctx, slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(ctx context.Context, msg string, args ...any)  { l.log(ctx, slog.LevelWarn, msg, args...) }
func (l *Logger) Error(ctx context.Context, msg string, args ...any) { l.log(ctx, slog.LevelError, msg, args...) }

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	msg = l.redactString(msg)

	redacted := make([]any, len(args))
	for i, a := range args {
		redacted[i] = l.redactValue(a)
	}

	attrs := make([]any, 0, len(redacted)+4)
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}
	if sessID, ok := ctx.Value(SessionIDKey).(string); ok && sessID != "" {
		attrs = append(attrs, "session_id", sessID)
	}
	attrs = append(attrs, redacted...)

	l.logger.Log(ctx, level, msg, attrs...)
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.redactString(val)
	case error:
		return l.redactString(val.Error())
	case []byte:
		return l.redactString(string(val))
	default:
		if b, err := json.Marshal(v); err == nil {
			return l.redactString(string(b))
		}
		return v
	}
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// WithFields returns a derived Logger with fields attached to every record.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), redacts: l.redacts}
}

// Slog exposes the underlying *slog.Logger for packages that want to pass
// one to New() elsewhere (e.g. llm.New) without importing this package.
func (l *Logger) Slog() *slog.Logger { return l.logger }

// WithRequestID attaches a request id to ctx for later correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithSessionID attaches a session id to ctx for later correlation.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// WithPlanID attaches a plan id to ctx for later correlation.
func WithPlanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, PlanIDKey, id)
}

// RequestIDFromContext returns the request id stashed by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// SessionIDFromContext returns the session id stashed by WithSessionID, or "".
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

// PlanIDFromContext returns the plan id stashed by WithPlanID, or "".
func PlanIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(PlanIDKey).(string)
	return v
}
