// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the emulator configuration used by `gyrostat serve`.
// Files ending in .yaml or .yml are read as YAML, files ending in .toml as
// TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/gyrostat/internal/logging"
)

// Config is the emulator configuration.
type Config struct {
	Board     BoardConfig     `yaml:"board" toml:"board"`
	EEPROM    string          `yaml:"eeprom" toml:"eeprom"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Sim       SimConfig       `yaml:"sim" toml:"sim"`
	LogLevel  string          `yaml:"log_level" toml:"log_level"`
}

// BoardConfig sets what the emulated board reports about itself. ID is
// the 4 character board identifier; ModelName is applied when no name has
// been saved.
type BoardConfig struct {
	ID        string `yaml:"id" toml:"id"`
	ModelName string `yaml:"model_name" toml:"model_name"`
}

// TransportConfig selects where the responder listens. Exactly one
// transport is used; serial wins over TCP, TCP over WebSocket.
type TransportConfig struct {
	SerialPort string `yaml:"serial_port" toml:"serial_port"`
	Baud       int    `yaml:"baud" toml:"baud"`
	TCPListen  string `yaml:"tcp_listen" toml:"tcp_listen"`
	WSListen   string `yaml:"ws_listen" toml:"ws_listen"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// SimConfig controls the telemetry simulation.
type SimConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	RateHz  int  `yaml:"rate_hz" toml:"rate_hz"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Board:    BoardConfig{ID: "GYRO"},
		EEPROM:   "gyrostat.eeprom",
		LogLevel: "info",
		Transport: TransportConfig{
			Baud:      115200,
			TCPListen: "127.0.0.1:5760",
		},
		Sim: SimConfig{Enabled: true, RateHz: 50},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config format not supported: %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the emulator cannot use.
func Validate(cfg Config) error {
	if n := len(cfg.Board.ID); n == 0 || n > 4 {
		return fmt.Errorf("board id must be 1 to 4 characters, got %q", cfg.Board.ID)
	}
	if len(cfg.Board.ModelName) > 16 {
		return fmt.Errorf("model name longer than 16 bytes: %q", cfg.Board.ModelName)
	}
	if strings.TrimSpace(cfg.EEPROM) == "" {
		return fmt.Errorf("eeprom path is required")
	}
	t := cfg.Transport
	if t.SerialPort == "" && t.TCPListen == "" && t.WSListen == "" {
		return fmt.Errorf("no transport configured")
	}
	if t.SerialPort != "" && t.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", t.Baud)
	}
	if cfg.Sim.Enabled && (cfg.Sim.RateHz <= 0 || cfg.Sim.RateHz > 1000) {
		return fmt.Errorf("sim rate must be 1..1000 Hz, got %d", cfg.Sim.RateHz)
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	return nil
}
