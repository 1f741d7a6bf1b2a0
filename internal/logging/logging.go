package logging

import (
	"log"
	"os"
	"sync/atomic"
)

var (
	quiet  atomic.Bool
	debug  atomic.Bool
	stdlog = log.New(os.Stderr, "", log.LstdFlags)
)

// Disable silences all log output. Used by the CLI for clean
// single-turn chat output.
func Disable() {
	quiet.Store(true)
}

// Enable turns log output back on.
func Enable() {
	quiet.Store(false)
}

// EnableDebug turns on debug-level output. Off by default; Debugf is
// a no-op until a command opts in with --verbose.
func EnableDebug() {
	debug.Store(true)
}

// Infof logs a formatted informational message.
func Infof(format string, v ...any) {
	logf("INFO", format, v...)
}

// Warnf logs a formatted warning.
func Warnf(format string, v ...any) {
	logf("WARN", format, v...)
}

// Errorf logs a formatted error message.
func Errorf(format string, v ...any) {
	logf("ERROR", format, v...)
}

// Debugf logs a formatted debug message when debug output is enabled.
func Debugf(format string, v ...any) {
	if !debug.Load() {
		return
	}
	logf("DEBUG", format, v...)
}

func logf(level, format string, v ...any) {
	if quiet.Load() {
		return
	}
	stdlog.Printf(level+" "+format, v...)
}
