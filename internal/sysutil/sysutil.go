// Package sysutil holds process-level helpers used by cmd/server: logger
// setup and small environment parsing utilities.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level. Accepted values
// (case-insensitive): debug, info, warn/warning, error, fatal, panic.
// Anything else, including "", selects info.
func SetLogLevel(lvl string) {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "warning" {
		lvl = "warn"
	}
	parsed, err := zerolog.ParseLevel(lvl)
	if err != nil || lvl == "" || parsed == zerolog.NoLevel || parsed > zerolog.PanicLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// ConfigureLogger installs the global logger writing to w, as JSON lines or
// as a human-readable console when pretty is set. The same logger backs
// zerolog.Ctx for contexts that carry none, so services log even outside a
// request.
func ConfigureLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	l := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &l
	return l
}

// IsTruthy reports whether an environment value means true.
// Accepted values (case-insensitive): "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// IsFalsy reports whether an environment value means false.
// Accepted values (case-insensitive): "0", "false", "no", "n", "off".
func IsFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "n", "off":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
