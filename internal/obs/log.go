// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package obs carries the module's ambient observability stack: slog-based
// structured logging and Prometheus metrics, shared by the server, client,
// tasks and streamable packages and by the cmd binaries.
package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var root *slog.Logger = slog.Default()

// InitSlog installs the process-wide structured logger. jsonOutput selects
// JSON records (for log aggregation) over human-readable text (for a
// terminal); level sets the minimum enabled severity.
func InitSlog(w io.Writer, level slog.Level, jsonOutput bool) {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	root = slog.New(h)
	slog.SetDefault(root)
}

// Log returns the process-wide logger.
func Log() *slog.Logger {
	if root == nil {
		return slog.Default()
	}
	return root
}

type contextKey string

const (
	ctxKeySessionID contextKey = "session_id"
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyTaskID    contextKey = "task_id"
)

// WithSessionID returns a context carrying sessionID for later log
// enrichment by WithContext.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, sessionID)
}

// WithRequestID returns a context carrying requestID for later log
// enrichment by WithContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// WithTaskID returns a context carrying taskID for later log enrichment by
// WithContext.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, ctxKeyTaskID, taskID)
}

// WithContext returns the process logger enriched with whatever
// session/request/task identifiers ctx carries.
func WithContext(ctx context.Context) *slog.Logger {
	l := Log()
	if v, ok := ctx.Value(ctxKeySessionID).(string); ok && v != "" {
		l = l.With("session_id", v)
	}
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok && v != "" {
		l = l.With("request_id", v)
	}
	if v, ok := ctx.Value(ctxKeyTaskID).(string); ok && v != "" {
		l = l.With("task_id", v)
	}
	return l
}

// InfoContext logs at info level with context-derived fields attached.
func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// WarnContext logs at warning level with context-derived fields attached.
func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// ErrorContext logs at error level with context-derived fields attached.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

// DebugContext logs at debug level with context-derived fields attached.
func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}
