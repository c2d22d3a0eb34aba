// Package logging builds the charmbracelet loggers shared by every lofiradio
// component and keeps the process-wide libVLC trace switch.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var traceEnabled atomic.Bool

// SetTrace enables verbose libVLC file logging. Call it before the audio
// device is initialised.
func SetTrace(enabled bool) { traceEnabled.Store(enabled) }

// TraceEnabled reports whether verbose libVLC logging was requested.
func TraceEnabled() bool { return traceEnabled.Load() }

// New creates a [log.Logger] writing to w with timestamps and caller
// reporting enabled. The writer defaults to [os.Stderr].
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{ReportTimestamp: true, ReportCaller: true})
	l.SetLevel(ParseLevel(level))
	return l
}

// NewFile creates a logger appending to path, creating parent directories.
// The TUI uses it so log lines do not corrupt the terminal.
func NewFile(path, level string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(f, level), f, nil
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// ParseLevel maps a textual level to [log.Level], defaulting to info.
func ParseLevel(s string) log.Level {
	s = strings.TrimSpace(s)
	if s == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Component returns a child logger tagged with the component name.
func Component(l *log.Logger, name string, kv ...any) *log.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With(append([]any{"component", name}, kv...)...)
}
