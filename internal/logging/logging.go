// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the zerolog logger shared by the command line
// tools. Level, colour and timestamps can be overridden from the
// environment.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const (
	EnvLogLevel     = "GYROSTAT_LOG_LEVEL"
	EnvLogTimestamp = "GYROSTAT_LOG_TIMESTAMP"
	EnvLogNoColor   = "GYROSTAT_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config controls logger output.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

// Configure builds the logger for profile writing to stderr, applies the
// environment overrides and installs it as the global zerolog logger.
func Configure(profile Profile) zerolog.Logger {
	cfg := DefaultConfig(profile)
	cfg.NoColor = !term.IsTerminal(int(os.Stderr.Fd()))
	ApplyEnv(&cfg, os.Getenv)
	logger := New(cfg, os.Stderr)
	log.Logger = logger
	return logger
}

// DefaultConfig returns the settings of a profile
func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

// ApplyEnv overrides cfg from the environment. Unparseable values are
// ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if lvl, ok := ParseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// New builds a console logger on out
func New(cfg Config, out io.Writer) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		w.PartsExclude = []string{zerolog.TimestampFieldName}
		return zerolog.New(w).Level(cfg.Level)
	}
	return zerolog.New(w).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel parses a level name. "off" and friends disable logging.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
