// Package logging provides structured logging for KRunner method calls.
package logging

import (
	"context"
	"log/slog"
)

// Call results.
const (
	ResultOK        = "ok"
	ResultRejected  = "rejected"
	ResultError     = "error"
	ResultNotFound  = "not_found"
	ResultAbandoned = "abandoned"
)

// Logger wraps slog with the runner name attached to every record.
type Logger struct {
	*slog.Logger
	runner string
}

// New creates a Logger writing to base. A nil base means slog.Default().
func New(base *slog.Logger, runner string) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{
		Logger: base,
		runner: runner,
	}
}

// LogMethod logs a D-Bus method call with its result. Errors are logged at
// error level, everything else at debug: the host calls Match on every
// keystroke.
func (l *Logger) LogMethod(ctx context.Context, method string, args map[string]any, result string, err error) {
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("result", result),
	}
	if l.runner != "" {
		attrs = append(attrs, slog.String("runner", l.runner))
	}
	for k, v := range args {
		attrs = append(attrs, slog.Any(k, v))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	level := slog.LevelDebug
	if result == ResultError {
		level = slog.LevelError
	}
	l.LogAttrs(ctx, level, "krunner_call", attrs...)
}

// LogMatch logs a Match call.
func (l *Logger) LogMatch(ctx context.Context, queryID, query string, count int, result string, err error) {
	l.LogMethod(ctx, "Match", map[string]any{
		"query_id": queryID,
		"query":    query,
		"count":    count,
	}, result, err)
}

// LogRun logs a Run call.
func (l *Logger) LogRun(ctx context.Context, matchID, actionID string, result string, err error) {
	l.LogMethod(ctx, "Run", map[string]any{
		"match_id":  matchID,
		"action_id": actionID,
	}, result, err)
}

// LogTeardown logs a Teardown call.
func (l *Logger) LogTeardown(ctx context.Context, result string, err error) {
	l.LogMethod(ctx, "Teardown", nil, result, err)
}
