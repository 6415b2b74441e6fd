package logging

import (
	"log/slog"
	"time"
)

// Canonical field names shared across packages so log queries stay stable.
const (
	FieldProjectID = "project_id"
	FieldStep      = "step"
	FieldRequestID = "request_id"
	FieldEventType = "event_type"
	FieldErrorKind = "error_kind"
	FieldProvider  = "provider"
	FieldAttempt   = "attempt"
	FieldDelay     = "delay"
)

// String builds a string attribute.
func String(key, value string) slog.Attr { return slog.String(key, value) }

// Int builds an int attribute.
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Int64 builds an int64 attribute.
func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

// Float64 builds a float64 attribute.
func Float64(key string, value float64) slog.Attr { return slog.Float64(key, value) }

// Bool builds a bool attribute.
func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

// Duration builds a duration attribute.
func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Error builds the conventional error attribute, tolerating nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
