// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"math"

	"github.com/Thermoquad/gyrostat/pkg/fc"
)

func registerTelemetryHandlers(t *Table) {
	t.Register(MspAttitude, handleAttitude)
	t.Register(MspAltitude, handleAltitude)
	t.Register(MspAnalog, handleAnalog)
	t.Register(MspRawIMU, handleRawIMU)
	t.Register(MspDebug, handleDebug)
	t.Register(MspBatteryState, handleBatteryState)
	t.Register(MspVoltageMeters, handleVoltageMeters)
	t.Register(MspCurrentMeters, handleCurrentMeters)
}

// lrint rounds half to even, the way the flight loop rounds for the wire.
func lrint(v float32) int32 {
	return int32(math.RoundToEven(float64(v)))
}

func degrees(rad float32) float32 {
	return rad * (180 / math.Pi)
}

func handleAttitude(_ *InboundMessage, out *OutboundMessage, m Model) {
	st := m.State()
	out.WriteU16(uint16(lrint(degrees(st.Angle[fc.AxisRoll]) * 10)))  // decidegrees
	out.WriteU16(uint16(lrint(degrees(st.Angle[fc.AxisPitch]) * 10))) // decidegrees
	out.WriteU16(uint16(lrint(degrees(-st.Angle[fc.AxisYaw]))))       // degrees
}

// handleAltitude reports barometric altitude in cm.
func handleAltitude(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteU32(uint32(lrint(m.State().BaroAltitude * 100)))
	out.WriteU16(0) // vario
}

func handleAnalog(_ *InboundMessage, out *OutboundMessage, m Model) {
	v := m.State().Battery.Voltage
	out.WriteU8(v)
	out.WriteU16(0) // mAh drawn
	out.WriteU16(0) // rssi
	out.WriteU16(0) // amperage
	out.WriteU16(uint16(v) * 10)
}

func handleRawIMU(_ *InboundMessage, out *OutboundMessage, m Model) {
	st := m.State()
	for _, a := range st.Accel {
		out.WriteU16(uint16(lrint(a / fc.StandardGravity * 512)))
	}
	for _, g := range st.Gyro {
		out.WriteU16(uint16(lrint(degrees(g))))
	}
	for _, v := range st.Mag {
		out.WriteU16(uint16(lrint(v)))
	}
}

func handleDebug(_ *InboundMessage, out *OutboundMessage, m Model) {
	for _, v := range m.State().Debug {
		out.WriteU16(uint16(v))
	}
}

func handleBatteryState(_ *InboundMessage, out *OutboundMessage, m Model) {
	b := m.State().Battery
	out.WriteU8(b.Cells)
	out.WriteU16(0) // capacity mAh
	out.WriteU8(b.Voltage)
	out.WriteU16(0) // mAh drawn
	out.WriteU16(0) // current 0.01 A
	out.WriteU8(0)  // alerts
	out.WriteU16(uint16(b.Voltage) * 10)
}

func handleVoltageMeters(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteU8(VbatMeterID)
	out.WriteU8(m.State().Battery.Voltage)
}

func handleCurrentMeters(_ *InboundMessage, _ *OutboundMessage, _ Model) {}
