// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/gyrostat/pkg/fc"
	"github.com/Thermoquad/gyrostat/pkg/msp"
)

const (
	armChannel = fc.AuxChannelOffset
	armHighUs  = 1800
	armLowUs   = 1000
)

func newStoredModel(t *testing.T) (*Model, *FileStore) {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "eeprom.cbor"))
	require.NoError(t, err)
	return New(WithStore(store)), store
}

func dispatch(t *testing.T, m *Model, opcode uint8, payload []byte) *msp.OutboundMessage {
	t.Helper()
	in, err := msp.NewInboundMessage(msp.DirCommand, opcode, payload)
	require.NoError(t, err)
	out := &msp.OutboundMessage{}
	require.NoError(t, msp.DefaultTable().Dispatch(in, out, m))
	return out
}

func TestFileStoreRoundTrip(t *testing.T) {
	_, store := newStoredModel(t)

	cfg := fc.DefaultConfig()
	cfg.ModelName = "quad"
	cfg.Pid[fc.PidRoll].P = 50
	cfg.Output.Pin[5] = 2
	cfg.Input.Rate = [3]uint8{70, 71, 72}
	require.NoError(t, store.Save(&cfg))

	loaded := fc.DefaultConfig()
	require.NoError(t, store.Load(&loaded))
	assert.Equal(t, cfg, loaded)
}

func TestFileStoreMissingImage(t *testing.T) {
	_, store := newStoredModel(t)
	cfg := fc.DefaultConfig()
	assert.ErrorIs(t, store.Load(&cfg), ErrNoImage)
}

func TestFileStoreRejectsForeignImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.cbor")
	data, err := cbor.Marshal(eepromImage{Magic: "XXXX", Version: eepromVersion})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	cfg := fc.DefaultConfig()
	assert.Error(t, store.Load(&cfg))
}

func TestFileStoreSaveLeavesNoTemporaryFiles(t *testing.T) {
	_, store := newStoredModel(t)
	cfg := fc.DefaultConfig()
	require.NoError(t, store.Save(&cfg))
	require.NoError(t, store.Save(&cfg))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(store.Path()), entries[0].Name())
}

func TestLoadWithoutImageKeepsDefaults(t *testing.T) {
	m, _ := newStoredModel(t)
	require.NoError(t, m.Load())
	assert.Equal(t, fc.DefaultConfig(), *m.Config())
}

func TestSaveWithoutStore(t *testing.T) {
	m := New()
	assert.ErrorIs(t, m.Save(), ErrNoStore)
}

func TestReset(t *testing.T) {
	m := New()
	m.Config().ModelName = "changed"
	m.Config().MixerType = fc.MixerHex6X
	m.Reload()
	require.Equal(t, uint8(6), m.State().MixerCount)

	m.Reset()
	assert.Equal(t, fc.DefaultConfig(), *m.Config())
	assert.Equal(t, uint8(4), m.State().MixerCount)
}

func TestReloadSensors(t *testing.T) {
	m := New()
	assert.True(t, m.State().GyroPresent)
	assert.True(t, m.State().MagPresent)

	m.Config().MagDev = fc.DeviceNone
	m.Config().BaroDev = fc.DeviceNone
	m.Reload()
	assert.False(t, m.State().MagPresent)
	assert.False(t, m.State().BaroPresent)
	assert.True(t, m.State().AccelPresent)
}

func TestArming(t *testing.T) {
	m := New()
	assert.Zero(t, m.State().ArmingDisabledFlags)

	m.SetInput(armChannel, armHighUs)
	assert.True(t, m.IsModeActive(fc.ModeArmed))

	m.SetInput(armChannel, armLowUs)
	assert.False(t, m.IsModeActive(fc.ModeArmed))
}

func TestArmingBlockedByThrottle(t *testing.T) {
	m := New()
	m.SetInput(3, 1500)
	m.SetInput(armChannel, armHighUs)

	assert.False(t, m.IsModeActive(fc.ModeArmed))
	assert.NotZero(t, m.State().ArmingDisabledFlags&fc.ArmingDisabledThrottle)
}

func TestArmingBlockedByCalibration(t *testing.T) {
	m := New()
	m.CalibrateGyro()
	m.SetInput(armChannel, armHighUs)
	assert.False(t, m.IsModeActive(fc.ModeArmed))
	assert.NotZero(t, m.State().ArmingDisabledFlags&fc.ArmingDisabledCalibrating)

	for range calibrationTicks {
		m.Tick(10 * time.Millisecond)
	}
	assert.False(t, m.State().GyroCalibrationPending)
	assert.True(t, m.IsModeActive(fc.ModeArmed))
}

func TestCalibrationIgnoredWhileArmed(t *testing.T) {
	m := New()
	m.SetInput(armChannel, armHighUs)
	require.True(t, m.IsModeActive(fc.ModeArmed))

	out := dispatch(t, m, msp.MspAccCalibration, nil)
	assert.Equal(t, msp.ResultOK, out.Result)
	assert.False(t, m.State().GyroCalibrationPending)

	out = dispatch(t, m, msp.MspMagCalibration, nil)
	assert.Equal(t, msp.ResultOK, out.Result)
	assert.False(t, m.State().MagCalibrationPending)

	m.SetInput(armChannel, armLowUs)
	dispatch(t, m, msp.MspAccCalibration, nil)
	assert.True(t, m.State().GyroCalibrationPending)
}

func TestEepromWrite(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		out := dispatch(t, New(), msp.MspEepromWrite, nil)
		assert.Equal(t, msp.ResultError, out.Result)
	})

	t.Run("armed", func(t *testing.T) {
		m, store := newStoredModel(t)
		m.SetInput(armChannel, armHighUs)
		out := dispatch(t, m, msp.MspEepromWrite, nil)
		assert.Equal(t, msp.ResultError, out.Result)
		assert.NoFileExists(t, store.Path())
	})

	t.Run("saved", func(t *testing.T) {
		m, store := newStoredModel(t)
		out := dispatch(t, m, msp.MspEepromWrite, nil)
		assert.Equal(t, msp.ResultOK, out.Result)
		assert.FileExists(t, store.Path())
	})
}

func TestRestartRestoresSavedConfig(t *testing.T) {
	uid := [fc.UIDSize]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	store, err := NewFileStore(filepath.Join(t.TempDir(), "eeprom.cbor"))
	require.NoError(t, err)
	m := New(WithStore(store), WithUID(uid))

	m.Config().ModelName = "saved"
	require.NoError(t, m.Save())
	m.Config().ModelName = "unsaved"
	m.SetInput(armChannel, armHighUs)

	require.NoError(t, m.Restart())
	assert.Equal(t, "saved", m.Config().ModelName)
	assert.Equal(t, uid, m.State().UID)
	assert.False(t, m.IsModeActive(fc.ModeArmed))
}

func TestRollbackKeepsModelConsistent(t *testing.T) {
	m := New()
	before := *m.Config()

	// SET_FILTER_CONFIG reads at least 5 bytes.
	in, err := msp.NewInboundMessage(msp.DirCommand, msp.MspSetFilterConfig, []byte{1, 2, 3})
	require.NoError(t, err)
	out := &msp.OutboundMessage{}
	require.Error(t, msp.DefaultTable().Dispatch(in, out, m))
	assert.Equal(t, msp.ResultError, out.Result)
	assert.Equal(t, before, *m.Config())
}

func TestTickOutputs(t *testing.T) {
	m := New()
	m.Tick(time.Second)
	st := m.State()
	assert.Equal(t, m.Config().Output.MinCommand, st.OutputUs[0])
	assert.Equal(t, uint16(1500), st.OutputUs[7])
	assert.Equal(t, uint8(4), st.Battery.Cells)

	m.SetInput(armChannel, armHighUs)
	m.SetInput(3, 1500)
	m.Tick(time.Second)
	out := m.Config().Output
	assert.Greater(t, st.OutputUs[0], out.MinThrottle)
	assert.Less(t, st.OutputUs[0], out.MaxThrottle)
}

func TestTickAttitudeInRange(t *testing.T) {
	m := New()
	for range 500 {
		m.Tick(37 * time.Millisecond)
		a := m.State().Angle
		assert.InDelta(t, 0, a[fc.AxisRoll], 0.2)
		assert.InDelta(t, 0, a[fc.AxisPitch], 0.2)
		assert.LessOrEqual(t, float64(a[fc.AxisYaw]), 3.1416)
	}
}
