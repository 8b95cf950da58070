// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package model implements the flight controller model answered for by the
// protocol engine: configuration with EEPROM persistence, derived runtime
// state, calibration and restart, and a telemetry simulation for running
// the responder without hardware.
//
// A Model is not safe for concurrent use; the host loop owns it.
package model

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/gyrostat/pkg/fc"
	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var _ msp.Model = (*Model)(nil)

// Calibration runs take this many simulation ticks.
const calibrationTicks = 50

// Model is the in-memory flight controller.
type Model struct {
	cfg      fc.Config
	state    fc.State
	identity fc.Identity
	store    Store
	log      zerolog.Logger
	sim      simulation

	gyroCalibrationLeft int
	magCalibrationLeft  int
}

// Option configures a Model.
type Option func(*Model)

// WithStore persists the configuration in s
func WithStore(s Store) Option {
	return func(m *Model) { m.store = s }
}

// WithIdentity sets the identity reported to peers
func WithIdentity(id fc.Identity) Option {
	return func(m *Model) { m.identity = id }
}

// WithUID sets the board unique id
func WithUID(uid [fc.UIDSize]byte) Option {
	return func(m *Model) { m.state.UID = uid }
}

// WithLogger sets the model logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) { m.log = l }
}

// New creates a model holding the factory configuration. Call Load to
// restore a saved one.
func New(opts ...Option) *Model {
	m := &Model{
		cfg:      fc.DefaultConfig(),
		identity: fc.DefaultIdentity(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initState()
	m.Reload()
	return m
}

// Load restores the saved configuration. Without a store, or when nothing
// has been saved yet, the current configuration is kept.
func (m *Model) Load() error {
	if m.store == nil {
		return nil
	}
	cfg := m.cfg
	err := m.store.Load(&cfg)
	if errors.Is(err, ErrNoImage) {
		m.log.Info().Msg("No saved configuration, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	m.cfg = cfg
	m.Reload()
	m.log.Info().Str("name", m.cfg.ModelName).Msg("Configuration loaded")
	return nil
}

// Config returns the live configuration
func (m *Model) Config() *fc.Config {
	return &m.cfg
}

// State returns the live runtime state
func (m *Model) State() *fc.State {
	return &m.state
}

// Identity returns the board identity
func (m *Model) Identity() fc.Identity {
	return m.identity
}

// SetIdentity replaces the board identity
func (m *Model) SetIdentity(id fc.Identity) {
	m.identity = id
}

// IsModeActive reports whether mode is set in the current mode mask
func (m *Model) IsModeActive(mode fc.Mode) bool {
	return m.state.ModeMask&mode.Mask() != 0
}

// IsFeatureActive reports whether feature is enabled in the configuration
func (m *Model) IsFeatureActive(feature fc.Feature) bool {
	return m.cfg.FeatureMask&uint32(feature) != 0
}

// Reload recomputes state derived from the configuration.
func (m *Model) Reload() {
	st := &m.state
	st.MixerCount = fc.MixerMotorCount(m.cfg.MixerType)
	st.GyroPresent = true
	st.AccelPresent = m.cfg.AccelDev != fc.DeviceNone
	st.BaroPresent = m.cfg.BaroDev != fc.DeviceNone
	st.MagPresent = m.cfg.MagDev != fc.DeviceNone
	st.Battery.Cells = cellCount(st.Battery.Voltage)
	m.updateModes()
}

// Save persists the configuration
func (m *Model) Save() error {
	if m.store == nil {
		return ErrNoStore
	}
	if err := m.store.Save(&m.cfg); err != nil {
		m.log.Error().Err(err).Msg("Failed to save configuration")
		return err
	}
	m.log.Info().Msg("Configuration saved")
	return nil
}

// Reset restores the factory configuration. The saved image is left
// untouched until the next Save.
func (m *Model) Reset() {
	m.cfg = fc.DefaultConfig()
	m.Reload()
	m.log.Info().Msg("Configuration reset to defaults")
}

// CalibrateGyro starts a gyro (and accelerometer) calibration
func (m *Model) CalibrateGyro() {
	m.state.GyroCalibrationPending = true
	m.gyroCalibrationLeft = calibrationTicks
	m.updateModes()
	m.log.Info().Msg("Gyro calibration started")
}

// CalibrateMag starts a magnetometer calibration
func (m *Model) CalibrateMag() {
	m.state.MagCalibrationPending = true
	m.magCalibrationLeft = calibrationTicks
	m.log.Info().Msg("Mag calibration started")
}

// Restart emulates a reboot: the saved configuration is reloaded and the
// runtime state starts over. The board UID survives.
func (m *Model) Restart() error {
	m.cfg = fc.DefaultConfig()
	m.initState()
	m.sim = simulation{}
	m.gyroCalibrationLeft = 0
	m.magCalibrationLeft = 0
	if err := m.Load(); err != nil {
		m.Reload()
		return err
	}
	m.Reload()
	m.log.Info().Msg("Restarted")
	return nil
}

// SetInput sets a receiver channel pulse width in µs and re-evaluates the
// mode conditions.
func (m *Model) SetInput(ch int, us float32) {
	if ch < 0 || ch >= fc.InputChannels {
		return
	}
	m.state.InputUs[ch] = us
	m.updateModes()
}

// initState resets runtime state to power-on values.
func (m *Model) initState() {
	uid := m.state.UID
	m.state = fc.State{UID: uid}
	for i := range m.state.InputUs {
		m.state.InputUs[i] = float32(m.cfg.Input.MidRc)
	}
	m.state.InputUs[inputThrottle] = float32(m.cfg.Input.MinRc)
	for i := range m.state.OutputDisarmed {
		m.state.OutputDisarmed[i] = m.cfg.Output.MinCommand
	}
	m.state.Battery.Voltage = fullBatteryVoltage
	m.state.Angle = [3]float32{}
	m.state.Accel[2] = fc.StandardGravity
}

// updateModes evaluates the mode conditions against the receiver inputs
// and recomputes the arming disable reasons.
func (m *Model) updateModes() {
	st := &m.state

	var flags uint32
	if !st.GyroPresent {
		flags |= fc.ArmingDisabledNoGyro
	}
	if st.GyroCalibrationPending {
		flags |= fc.ArmingDisabledCalibrating
	}
	if m.IsModeActive(fc.ModeFailsafe) {
		flags |= fc.ArmingDisabledRxFailsafe
	}

	var mask uint32
	for _, c := range m.cfg.Conditions {
		if int(c.ID) >= int(fc.ModeCount) || int(c.Ch) >= fc.InputChannels {
			continue
		}
		us := st.InputUs[c.Ch]
		if c.Min < c.Max && us >= float32(c.Min) && us <= float32(c.Max) {
			mask |= fc.Mode(c.ID).Mask()
		}
	}

	wasArmed := m.IsModeActive(fc.ModeArmed)
	if !wasArmed && st.InputUs[inputThrottle] > float32(m.cfg.Input.MinCheck) {
		flags |= fc.ArmingDisabledThrottle
	}
	if mask&fc.ModeArmed.Mask() != 0 && flags != 0 && !wasArmed {
		mask &^= fc.ModeArmed.Mask()
	}

	st.ArmingDisabledFlags = flags
	st.ModeMask = mask
}
