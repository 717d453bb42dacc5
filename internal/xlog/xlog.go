// Package xlog provides the structured logging used across exitbook's core
// packages. It wraps log/slog the way go-ethereum's log package wraps it:
// one glog-style text handler whose output goes through go-colorable when
// writing to a terminal and straight to the writer otherwise (level
// prefixes are plain text, without color codes), and call-site capture
// reserved for error records.
package xlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level mirrors slog.Level with names matching the rest of the core's
// vocabulary (Trace is used heavily in the provider manager's hot path).
type Level = slog.Level

const (
	LevelTrace Level = slog.Level(-8)
	LevelDebug Level = slog.LevelDebug
	LevelInfo  Level = slog.LevelInfo
	LevelWarn  Level = slog.LevelWarn
	LevelError Level = slog.LevelError
	LevelCrit  Level = slog.Level(12)
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelCrit:  "CRIT",
}

// Logger is the handle every component holds. It is cheap to derive via
// With, so components attach stable fields (account_id, chain, provider)
// once and reuse the derived logger for the lifetime of the operation.
type Logger struct {
	inner *slog.Logger
}

var root atomic.Pointer[Logger]

func init() {
	root.Store(New(os.Stderr, LevelInfo))
}

// SetDefault installs l as the process-wide default logger.
func SetDefault(l *Logger) { root.Store(l) }

// Default returns the process-wide logger.
func Default() *Logger { return root.Load() }

// New builds a terminal-aware logger writing to w at the given minimum
// level. When w is a TTY its output goes through go-colorable; the
// rendered lines carry no color codes either way.
func New(w io.Writer, level Level) *Logger {
	h := newTerminalHandler(colorableWriter(w), level)
	return &Logger{inner: slog.New(h)}
}

// NewFileLogger builds a logger that rotates its output via lumberjack,
// suitable for long-running import daemons.
func NewFileLogger(path string, level Level) *Logger {
	lj := &lumberjack.Logger{Filename: path, MaxSize: 100, MaxBackups: 5, MaxAge: 28, Compress: true}
	h := newTerminalHandler(lj, level)
	return &Logger{inner: slog.New(h)}
}

func colorableWriter(w io.Writer) io.Writer {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return colorable.NewColorable(f)
	}
	return w
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }
func (l *Logger) Crit(msg string, args ...any)  { l.log(LevelCrit, msg, args...) }

func (l *Logger) log(level Level, msg string, args ...any) {
	if level >= LevelError {
		args = append(args, "stack", callerStack())
	}
	l.inner.Log(context.Background(), level, msg, args...)
}

func callerStack() string {
	s := stack.Trace().TrimRuntime()
	if len(s) > 6 {
		s = s[2:6]
	}
	return fmt.Sprintf("%v", s)
}

// terminalHandler renders records the way go-ethereum's glog handler does:
// "LEVEL [timestamp] message                    key=val key=val".
type terminalHandler struct {
	w     io.Writer
	level Level
	attrs []slog.Attr
}

func newTerminalHandler(w io.Writer, level Level) *terminalHandler {
	return &terminalHandler{w: w, level: level}
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	name, ok := levelNames[r.Level]
	if !ok {
		name = r.Level.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s [%s] %s", name, r.Time.Format("01-02|15:04:05.000"), r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	b.WriteByte('\n')
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *h
	n.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &n
}

func (h *terminalHandler) WithGroup(_ string) slog.Handler { return h }

// Uptime is a convenience helper components use when logging long-running
// operation durations (import sessions, calculation runs).
func Uptime(since time.Time) time.Duration { return time.Since(since) }
