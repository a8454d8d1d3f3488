package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level defines the minimum level a logger writes
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format defines the output format for the logger
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

const redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the output
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"access_token":  {},
	"refresh_token": {},
	"password":      {},
	"token":         {},
}

// SlogConfig holds all the configuration for the application logger (slog)
type SlogConfig struct {
	Level     Level     // Level is the minimum level of logs to be written
	Format    Format    // Format is "json" or "text"; anything else falls back to json
	AddSource bool      // AddSource includes the source file and line in each record
	Writer    io.Writer // Writer is the destination for the logs. Defaults to os.Stdout if nil
}

// NewSlogConfig creates a new slog.Logger based on the provided configuration.
// Attributes named like credentials are replaced with a placeholder.
func NewSlogConfig(cfg SlogConfig) *slog.Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	opts := slog.HandlerOptions{
		AddSource:   cfg.AddSource,
		Level:       ParseLevel(string(cfg.Level)),
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	switch Format(strings.ToLower(string(cfg.Format))) {
	case FormatText:
		handler = slog.NewTextHandler(writer, &opts)
	default:
		handler = slog.NewJSONHandler(writer, &opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}
