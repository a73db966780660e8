package slogx

import (
	"log/slog"
	"time"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
//
// Parameters:
//   - err: The error to be converted into a slog.Attr.
//
// Returns:
//   - slog.Attr: An attribute with the key "error" and the error's message as the value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "<nil>")
	}
	return slog.String(KeyError, err.Error())
}

const (
	// KeyError is the key used for error attributes.
	KeyError = "error"
	// KeyLoggerName is the key for the component logger name.
	KeyLoggerName = "logger"
	// KeyRequestID is the key for the request correlation id.
	KeyRequestID = "request_id"
	// KeyDuration is the key for elapsed time attributes.
	KeyDuration = "duration"
)

// LoggerName creates a slog.Attr with the provided logger name.
// The attribute key is defined by KeyLoggerName.
//
// Parameters:
//   - name: The name of the logger, for example "aviary.registry".
//
// Returns:
//
//	A slog.Attr containing the logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// RequestID creates a slog.Attr carrying the request correlation id.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Duration creates a slog.Attr with the elapsed time rendered as a string,
// which reads better than nanoseconds in console output.
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Named returns a logger for a component. When withTarget is false the base
// logger is returned unchanged.
//
// Parameters:
//   - base: The parent logger; slog.Default() is used when nil.
//   - name: The component name.
//   - withTarget: Whether to attach the logger name attribute.
func Named(base *slog.Logger, name string, withTarget bool) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if !withTarget {
		return base
	}
	return base.With(LoggerName(name))
}
