// ABOUTME: Structured leveled logging shared across packages
// ABOUTME: Wraps charmbracelet/log with a process-wide default logger
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu       sync.RWMutex
	fallback = New(os.Stderr, log.InfoLevel)
)

// New creates a logger writing to w at the given level.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "crmpulse",
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
}

// Default returns the process logger.
func Default() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return fallback
}

// SetDefault replaces the process logger. Useful for testing.
func SetDefault(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	fallback = l
}

// SetLevel parses a level name ("debug", "info", "warn", "error") and applies it.
// Unknown names leave the level unchanged.
func SetLevel(name string) {
	level, err := log.ParseLevel(name)
	if err != nil {
		return
	}
	Default().SetLevel(level)
}

// Component returns a child logger tagged with a component name.
func Component(name string) *log.Logger {
	return Default().With("component", name)
}
