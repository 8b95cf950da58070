// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"trace", zerolog.TraceLevel, true},
		{" DEBUG ", zerolog.DebugLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:     "trace",
		EnvLogTimestamp: "false",
		EnvLogNoColor:   "not-a-bool",
	}
	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnv(&cfg, func(k string) string { return env[k] })

	assert.Equal(t, zerolog.TraceLevel, cfg.Level)
	assert.False(t, cfg.Timestamp)
	assert.False(t, cfg.NoColor)
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.WarnLevel, NoColor: true}, &buf)

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Str("opcode", "MSP_STATUS").Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "MSP_STATUS")
}
