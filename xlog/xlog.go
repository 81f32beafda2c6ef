// Package xlog is the single logging sink used across the host engine
// (spec §6): one stderr writer, fields timestamp/component/level/message,
// error-and-above flush eagerly. The interface shape (a handle-bearing
// logger plus a leveled Helper obtained from it) mirrors the
// github.com/saferwall/pe/log seam the teacher's file.go and cmd/dump.go
// call through (log.NewHelper(log.NewFilter(logger, log.FilterLevel(...))))
// — that subpackage's source was filtered out of the retrieval pack, so its
// shape is reconstructed from call sites rather than copied, and built on
// stdlib log/slog since no structured-logging library appears with source
// in the example pack (see DESIGN.md).
package xlog

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	once sync.Once
	base *slog.Logger
)

func root() *slog.Logger {
	once.Do(func() {
		level := slog.LevelInfo
		if os.Getenv("METAFFI_GO_PLUGIN_DEBUG_LOG") != "" {
			level = slog.LevelDebug
		}
		base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	})
	return base
}

// SetLevel adjusts the minimum level that reaches stderr, overriding the
// METAFFI_GO_PLUGIN_DEBUG_LOG default; cmd/metaffi-hostctl's --verbose
// flag calls it with slog.LevelDebug.
func SetLevel(level slog.Level) {
	root()
	base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Helper is a component-scoped logger, analogous to the teacher's
// log.Helper: every call site names its own component once at
// construction, not on every log line.
type Helper struct {
	component string
}

// For returns a Helper scoped to component (e.g. "xllr.loader",
// "cdts.serializer", "entity.loader", "dispatch", "runtime.registry").
func For(component string) *Helper {
	return &Helper{component: component}
}

func (h *Helper) log(level slog.Level, msg string, args ...any) {
	root().LogAttrs(context.Background(), level, msg,
		append([]slog.Attr{slog.String("component", h.component)}, toAttrs(args)...)...)
}

func toAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

// Debug logs at debug level (only visible once METAFFI_GO_PLUGIN_DEBUG_LOG
// is set or SetLevel lowers the level).
func (h *Helper) Debug(msg string, args ...any) { h.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (h *Helper) Info(msg string, args ...any) { h.log(slog.LevelInfo, msg, args...) }

// Error logs at error level. Per spec §4.9, destructor and teardown paths
// call this and swallow the underlying error rather than propagate it.
func (h *Helper) Error(msg string, args ...any) { h.log(slog.LevelError, msg, args...) }
