// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import "github.com/Thermoquad/gyrostat/pkg/fc"

// servoRecordSize is the size of one SERVO_CONFIGURATIONS record.
const servoRecordSize = 6 + 1 + 1 + 4

func registerOutputHandlers(t *Table) {
	t.Register(MspMotorConfig, handleMotorConfig)
	t.Register(MspSetMotorConfig, handleSetMotorConfig)
	t.Register(MspMotor3DConfig, handleMotor3DConfig)
	t.Register(MspMotor, handleMotor)
	t.Register(MspSetMotor, handleSetMotor)
	t.Register(MspServo, handleServo)
	t.Register(MspServoConfigurations, handleServoConfigurations)
	t.Register(MspSetServoConfiguration, handleSetServoConfiguration)
}

func handleMotorConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	o := &m.Config().Output
	out.WriteU16(o.MinThrottle)
	out.WriteU16(o.MaxThrottle)
	out.WriteU16(o.MinCommand)
	out.WriteU8(m.State().MixerCount)
	out.WriteU8(14) // motor poles
	out.WriteU8(0)  // dshot telemetry
	out.WriteU8(0)  // esc sensor
}

func handleSetMotorConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	o := &m.Config().Output
	o.MinThrottle = in.ReadU16()
	o.MaxThrottle = in.ReadU16()
	o.MinCommand = in.ReadU16()
	if in.Remaining() >= 2 {
		in.ReadU8() // motor poles
		in.ReadU8() // dshot telemetry
	}
	m.Reload()
}

func handleMotor3DConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU16(1406) // deadband low
	out.WriteU16(1514) // deadband high
	out.WriteU16(1460) // neutral
}

// handleMotor reports output pulse widths; unassigned outputs read 0.
func handleMotor(_ *InboundMessage, out *OutboundMessage, m Model) {
	writeOutputs(out, m, 0)
}

// handleServo reports output pulse widths; unassigned outputs read 1500.
func handleServo(_ *InboundMessage, out *OutboundMessage, m Model) {
	writeOutputs(out, m, 1500)
}

func writeOutputs(out *OutboundMessage, m Model, unassigned uint16) {
	pins := &m.Config().Output.Pin
	st := m.State()
	for i, us := range st.OutputUs {
		if pins[i] < 0 {
			out.WriteU16(unassigned)
			continue
		}
		out.WriteU16(us)
	}
}

// handleSetMotor sets the outputs used while disarmed, for motor tests.
func handleSetMotor(in *InboundMessage, _ *OutboundMessage, m Model) {
	st := m.State()
	for i := range st.OutputDisarmed {
		st.OutputDisarmed[i] = in.ReadU16()
	}
}

func handleServoConfigurations(_ *InboundMessage, out *OutboundMessage, m Model) {
	for _, ch := range m.Config().Output.Channel {
		out.WriteU16(ch.Min)
		out.WriteU16(ch.Max)
		out.WriteU16(ch.Neutral)
		out.WriteU8(100)  // rate
		out.WriteU8(0xff) // forward from channel
		out.WriteU32(0)   // reversed sources
	}
}

func handleSetServoConfiguration(in *InboundMessage, out *OutboundMessage, m Model) {
	i := int(in.ReadU8())
	if i >= fc.OutputChannels {
		out.Result = ResultError
		return
	}
	ch := &m.Config().Output.Channel[i]
	ch.Min = in.ReadU16()
	ch.Max = in.ReadU16()
	ch.Neutral = in.ReadU16()
	in.Advance(servoRecordSize - 6) // rate, forward channel, reversed sources
}
