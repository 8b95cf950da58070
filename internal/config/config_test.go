// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "gyrostat.yaml", `
board:
  id: ESPF
  model_name: bench
eeprom: /tmp/bench.eeprom
transport:
  tcp_listen: ":5761"
sim:
  rate_hz: 100
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ESPF", cfg.Board.ID)
	require.Equal(t, "bench", cfg.Board.ModelName)
	require.Equal(t, "/tmp/bench.eeprom", cfg.EEPROM)
	require.Equal(t, ":5761", cfg.Transport.TCPListen)
	require.Equal(t, 115200, cfg.Transport.Baud)
	require.True(t, cfg.Sim.Enabled)
	require.Equal(t, 100, cfg.Sim.RateHz)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "gyrostat.toml", `
log_level = "warn"

[board]
id = "BTFL"

[transport]
serial_port = "/dev/ttyUSB0"
baud = 57600

[metrics]
addr = ":9464"

[sim]
enabled = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "BTFL", cfg.Board.ID)
	require.Equal(t, "/dev/ttyUSB0", cfg.Transport.SerialPort)
	require.Equal(t, 57600, cfg.Transport.Baud)
	require.Equal(t, ":9464", cfg.Metrics.Addr)
	require.False(t, cfg.Sim.Enabled)
	require.Equal(t, "gyrostat.eeprom", cfg.EEPROM)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "gyrostat.json", `{}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Default()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty board id", func(c *Config) { c.Board.ID = "" }},
		{"long board id", func(c *Config) { c.Board.ID = "TOOLONG" }},
		{"long model name", func(c *Config) { c.Board.ModelName = "a-name-over-16-bytes" }},
		{"no eeprom", func(c *Config) { c.EEPROM = " " }},
		{"no transport", func(c *Config) { c.Transport = TransportConfig{} }},
		{"bad baud", func(c *Config) { c.Transport.SerialPort = "/dev/ttyS0"; c.Transport.Baud = 0 }},
		{"bad sim rate", func(c *Config) { c.Sim.RateHz = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.Error(t, Validate(cfg))
		})
	}
}
