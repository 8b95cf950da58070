// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package model

import (
	"math"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/fc"
)

// Receiver channel order is AETR.
const inputThrottle = 3

// Battery simulation, in 0.1 V
const (
	fullBatteryVoltage  = 168
	emptyBatteryVoltage = 132
	cellMaxVoltage      = 44
)

// Simulated loop: 1 kHz with a slowly wandering load.
const (
	simLoopTime = time.Millisecond
	simBaseLoad = 150 // percent * 10
)

// simulation holds the free-running simulation clock.
type simulation struct {
	elapsed time.Duration
	drain   float64 // accumulated battery drain, 0.1 V
}

// cellCount estimates the number of series cells from the pack voltage.
func cellCount(voltage uint8) uint8 {
	if voltage == 0 {
		return 0
	}
	return uint8((int(voltage) + cellMaxVoltage - 1) / cellMaxVoltage)
}

// Tick advances the simulation by dt: the attitude sways slowly, the
// battery drains while armed and outputs follow the throttle input.
// Pending calibrations complete after a fixed number of ticks.
func (m *Model) Tick(dt time.Duration) {
	if dt <= 0 {
		return
	}
	m.sim.elapsed += dt
	t := m.sim.elapsed.Seconds()
	st := &m.state
	armed := m.IsModeActive(fc.ModeArmed)

	st.LoopTime = simLoopTime
	st.Load = uint16(simBaseLoad + 20*math.Sin(t/3))

	roll := 0.15 * math.Sin(t*0.7)
	pitch := 0.10 * math.Sin(t*0.5+1)
	yaw := math.Mod(t*0.2, 2*math.Pi)
	if yaw > math.Pi {
		yaw -= 2 * math.Pi
	}
	st.Gyro[fc.AxisRoll] = float32(0.15 * 0.7 * math.Cos(t*0.7))
	st.Gyro[fc.AxisPitch] = float32(0.10 * 0.5 * math.Cos(t*0.5+1))
	st.Gyro[fc.AxisYaw] = 0.2
	st.Angle = [3]float32{float32(roll), float32(pitch), float32(yaw)}

	st.Accel[0] = float32(-fc.StandardGravity * math.Sin(pitch))
	st.Accel[1] = float32(fc.StandardGravity * math.Sin(roll) * math.Cos(pitch))
	st.Accel[2] = float32(fc.StandardGravity * math.Cos(roll) * math.Cos(pitch))
	if st.MagPresent {
		st.Mag = [3]float32{float32(0.3 * math.Cos(yaw)), float32(-0.3 * math.Sin(yaw)), 0.4}
	}
	if st.BaroPresent {
		st.BaroAltitude = float32(0.5 * math.Sin(t/5))
	}

	if armed {
		m.sim.drain += dt.Seconds() * 0.05
	}
	v := fullBatteryVoltage - int(m.sim.drain)
	if v < emptyBatteryVoltage {
		v = emptyBatteryVoltage
	}
	st.Battery.Voltage = uint8(v)
	st.Battery.Cells = cellCount(st.Battery.Voltage)

	m.updateOutputs(armed)
	m.advanceCalibration()
}

// updateOutputs drives the assigned motor outputs from the throttle input
// while armed and from the disarmed override otherwise.
func (m *Model) updateOutputs(armed bool) {
	out := &m.cfg.Output
	st := &m.state
	throttle := st.InputUs[inputThrottle]
	span := float32(m.cfg.Input.MaxRc) - float32(m.cfg.Input.MinRc)
	ratio := float32(0)
	if span > 0 {
		ratio = (throttle - float32(m.cfg.Input.MinRc)) / span
	}
	ratio = min(max(ratio, 0), 1)

	for i := range st.OutputUs {
		switch {
		case i >= int(st.MixerCount):
			st.OutputUs[i] = out.Channel[i].Neutral
		case armed:
			lo, hi := float32(out.MinThrottle), float32(out.MaxThrottle)
			st.OutputUs[i] = uint16(lo + ratio*(hi-lo))
		default:
			st.OutputUs[i] = st.OutputDisarmed[i]
		}
	}
}

func (m *Model) advanceCalibration() {
	if m.gyroCalibrationLeft > 0 {
		m.gyroCalibrationLeft--
		if m.gyroCalibrationLeft == 0 {
			m.state.GyroCalibrationPending = false
			m.updateModes()
			m.log.Info().Msg("Gyro calibration complete")
		}
	}
	if m.magCalibrationLeft > 0 {
		m.magCalibrationLeft--
		if m.magCalibrationLeft == 0 {
			m.state.MagCalibrationPending = false
			m.log.Info().Msg("Mag calibration complete")
		}
	}
}
