// Package logger provides process-wide logging for the viewshot CLI.
//
// Warnings and errors are always written. Debug and info messages appear
// only in verbose mode (--verbose), where they trace the device flow,
// token refreshes and upload attempts. Tokens are never logged.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the rendering of log lines.
type Format string

// Supported formats.
const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	format  = FormatConsole
	output  io.Writer = os.Stderr
	base    = build()
)

// build creates the zerolog logger for the current settings. Callers hold mu.
func build() zerolog.Logger {
	w := output
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    true,
			TimeFormat: time.TimeOnly,
		}
	}
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = build()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetFormat switches between console and JSON output.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	if f != FormatJSON {
		f = FormatConsole
	}
	format = f
	base = build()
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// L returns the underlying structured logger for call sites that attach
// fields.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

// Component returns a logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	L().Debug().Msg(fmt.Sprintf(format, args...))
}

// Section logs a section header if verbose mode is enabled.
func Section(name string) {
	L().Debug().Str("section", name).Msg("=== " + name + " ===")
}

// Info logs an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	L().Info().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	L().Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs an error.
func Error(format string, args ...any) {
	L().Error().Msg(fmt.Sprintf(format, args...))
}
