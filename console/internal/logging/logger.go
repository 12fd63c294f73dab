// Package logging configures the console's slog logger.
//
// Output goes to stderr by default so table and JSON output on stdout stays
// machine readable. Never log tokens or passwords.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"vpn-console/console/internal/config"
)

func New(cfg config.LoggingConfig) *slog.Logger {
	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		out = os.Stdout
	}
	return NewWithWriter(cfg, out)
}

func NewWithWriter(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler).With("service", "vpnconsole")
}

// ParseLevel defaults to info for unknown input.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Resty adapts a slog logger to resty's logger interface.
type Resty struct {
	Logger *slog.Logger
}

func (r Resty) Errorf(format string, v ...interface{}) {
	r.Logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}

func (r Resty) Warnf(format string, v ...interface{}) {
	r.Logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}

func (r Resty) Debugf(format string, v ...interface{}) {
	r.Logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}
