package logging

import (
	"fmt"
	"strings"
)

// PrintfAdapter bridges the structured logger to printf-style interfaces such
// as goose's migration logger.
type PrintfAdapter struct {
	logger Logger
}

// NewPrintfAdapter creates a printf-style adapter around logger. The
// component name is attached to every message.
func NewPrintfAdapter(logger Logger, component string) *PrintfAdapter {
	return &PrintfAdapter{
		logger: logger.WithFields(String("component", component)),
	}
}

// Printf logs a formatted message. The level is sniffed from conventional
// prefixes; everything else logs at info.
func (a *PrintfAdapter) Printf(format string, v ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, v...), "\n")

	switch {
	case strings.HasPrefix(msg, "ERROR:") || strings.Contains(msg, "error:"):
		a.logger.Error(msg)
	case strings.HasPrefix(msg, "WARN:"):
		a.logger.Warn(msg)
	case strings.HasPrefix(msg, "DEBUG:"):
		a.logger.Debug(msg)
	default:
		a.logger.Info(msg)
	}
}

// Fatalf logs a formatted message and exits
func (a *PrintfAdapter) Fatalf(format string, v ...interface{}) {
	a.logger.Fatal(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

// globalLogger is the default logger used by the package-level functions
var globalLogger Logger

func init() {
	globalLogger = New(nil, nil)
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	return globalLogger
}

// Debug logs a debug message to the global logger
func Debug(msg string, fields ...Field) {
	globalLogger.Debug(msg, fields...)
}

// Info logs an info message to the global logger
func Info(msg string, fields ...Field) {
	globalLogger.Info(msg, fields...)
}

// Warn logs a warning message to the global logger
func Warn(msg string, fields ...Field) {
	globalLogger.Warn(msg, fields...)
}

// LogError logs an error message to the global logger
func LogError(msg string, fields ...Field) {
	globalLogger.Error(msg, fields...)
}

// Fatal logs a fatal message to the global logger and exits
func Fatal(msg string, fields ...Field) {
	globalLogger.Fatal(msg, fields...)
}
