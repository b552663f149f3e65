// Package logger holds the process-wide hclog root logger.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	root hclog.Logger = hclog.New(&hclog.LoggerOptions{
		Name:   "streamctl",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
	mu sync.RWMutex
)

// Init replaces the root logger. format is "text" or "json".
func Init(level, format string) hclog.Logger {
	l := hclog.New(&hclog.LoggerOptions{
		Name:       "streamctl",
		Level:      parseLevel(level),
		Output:     os.Stderr,
		JSONFormat: strings.EqualFold(format, "json"),
	})

	mu.Lock()
	root = l
	mu.Unlock()

	return l
}

// Set replaces the root logger with l, mostly for tests
func Set(l hclog.Logger) {
	mu.Lock()
	root = l
	mu.Unlock()
}

// Get returns the root logger
func Get() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Named returns a sub-logger of the root
func Named(name string) hclog.Logger {
	return Get().Named(name)
}

// Info logs informational messages with key/value pairs
func Info(msg string, args ...interface{}) {
	Get().Info(msg, args...)
}

// Warn logs warning messages
func Warn(msg string, args ...interface{}) {
	Get().Warn(msg, args...)
}

// Error logs error messages
func Error(msg string, args ...interface{}) {
	Get().Error(msg, args...)
}

// Debug logs debug messages
func Debug(msg string, args ...interface{}) {
	Get().Debug(msg, args...)
}

func parseLevel(level string) hclog.Level {
	l := hclog.LevelFromString(strings.TrimSpace(level))
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}
