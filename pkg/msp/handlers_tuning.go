// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import "github.com/Thermoquad/gyrostat/pkg/fc"

func registerTuningHandlers(t *Table) {
	t.Register(MspAdvancedConfig, handleAdvancedConfig)
	t.Register(MspSetAdvancedConfig, handleSetAdvancedConfig)
	t.Register(MspFilterConfig, handleFilterConfig)
	t.Register(MspSetFilterConfig, handleSetFilterConfig)
	t.Register(MspPidController, handlePidController)
	t.Register(MspPid, handlePid)
	t.Register(MspSetPid, handleSetPid)
	t.Register(MspPidAdvanced, handlePidAdvanced)
	t.Register(MspSetPidAdvanced, handleSetPidAdvanced)
}

func handleAdvancedConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(cfg.GyroSync)
	out.WriteU8(cfg.LoopSync)
	out.WriteU8(cfg.Output.Async)
	out.WriteU8(cfg.Output.Protocol)
	out.WriteU16(cfg.Output.Rate)
	out.WriteU16(cfg.Output.DshotIdle)
	out.WriteU8(0)    // 32k gyro
	out.WriteU8(0)    // pwm inversion
	out.WriteU8(0)    // gyro to use
	out.WriteU8(0)    // gyro high fsr
	out.WriteU8(48)   // gyro calibration threshold
	out.WriteU16(125) // gyro calibration duration
	out.WriteU16(0)   // gyro offset yaw
	out.WriteU8(0)    // check overflow
	out.WriteU8(cfg.DebugMode)
	out.WriteU8(fc.DebugModeCount)
}

func handleSetAdvancedConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	cfg.GyroSync = in.ReadU8()
	cfg.LoopSync = in.ReadU8()
	cfg.Output.Async = in.ReadU8()
	cfg.Output.Protocol = in.ReadU8()
	cfg.Output.Rate = in.ReadU16()
	if in.Remaining() >= 2 {
		cfg.Output.DshotIdle = in.ReadU16()
	}
	if in.Remaining() >= 1 {
		in.ReadU8() // 32k gyro
	}
	if in.Remaining() >= 1 {
		in.ReadU8() // pwm inversion
	}
	if in.Remaining() >= 8 {
		in.Advance(8) // gyro selection and calibration
	}
	if in.Remaining() >= 1 {
		cfg.DebugMode = in.ReadU8()
	}
	m.Reload()
}

// dlpfWireType maps the gyro DLPF setting to the wire enum: 0 for 256 Hz,
// 1 for the extended mode, 2 for everything else.
func dlpfWireType(dlpf uint8) uint8 {
	switch dlpf {
	case fc.GyroDlpf256:
		return 0
	case fc.GyroDlpfEx:
		return 1
	default:
		return 2
	}
}

func handleFilterConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(uint8(cfg.GyroFilter.Freq))
	out.WriteU16(cfg.DtermFilter.Freq)
	out.WriteU16(cfg.YawFilter.Freq)
	out.WriteU16(cfg.GyroNotch1Filter.Freq)
	out.WriteU16(cfg.GyroNotch1Filter.Cutoff)
	out.WriteU16(cfg.DtermNotchFilter.Freq)
	out.WriteU16(cfg.DtermNotchFilter.Cutoff)
	out.WriteU16(cfg.GyroNotch2Filter.Freq)
	out.WriteU16(cfg.GyroNotch2Filter.Cutoff)
	out.WriteU8(cfg.DtermFilter.Type)
	out.WriteU8(dlpfWireType(cfg.GyroDlpf))
	out.WriteU8(0) // 32k dlpf type
	out.WriteU16(cfg.GyroFilter.Freq)
	out.WriteU16(cfg.GyroFilter2.Freq)
	out.WriteU8(cfg.GyroFilter.Type)
	out.WriteU8(cfg.GyroFilter2.Type)
	out.WriteU16(cfg.DtermFilter2.Freq)
	out.WriteU8(cfg.DtermFilter2.Type)
	out.WriteU16(cfg.GyroDynLpfFilter.Cutoff) // min
	out.WriteU16(cfg.GyroDynLpfFilter.Freq)   // max
	out.WriteU16(cfg.DtermDynLpfFilter.Cutoff)
	out.WriteU16(cfg.DtermDynLpfFilter.Freq)
	out.WriteU8(0)  // dyn notch range
	out.WriteU8(0)  // dyn notch width percent
	out.WriteU16(0) // dyn notch q
	out.WriteU16(0) // dyn notch min hz
	out.WriteU8(0)  // rpm notch harmonics
	out.WriteU8(0)  // rpm notch min
}

// handleSetFilterConfig decodes the legacy five-byte prefix and each
// optional group in protocol order.
func handleSetFilterConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	cfg.GyroFilter.Freq = uint16(in.ReadU8())
	cfg.DtermFilter.Freq = in.ReadU16()
	cfg.YawFilter.Freq = in.ReadU16()
	if in.Remaining() >= 8 {
		cfg.GyroNotch1Filter.Freq = in.ReadU16()
		cfg.GyroNotch1Filter.Cutoff = in.ReadU16()
		cfg.DtermNotchFilter.Freq = in.ReadU16()
		cfg.DtermNotchFilter.Cutoff = in.ReadU16()
	}
	if in.Remaining() >= 4 {
		cfg.GyroNotch2Filter.Freq = in.ReadU16()
		cfg.GyroNotch2Filter.Cutoff = in.ReadU16()
	}
	if in.Remaining() >= 1 {
		cfg.DtermFilter.Type = in.ReadU8()
	}
	if in.Remaining() >= 10 {
		in.ReadU8() // dlpf type
		in.ReadU8() // 32k dlpf type
		cfg.GyroFilter.Freq = in.ReadU16()
		cfg.GyroFilter2.Freq = in.ReadU16()
		cfg.GyroFilter.Type = in.ReadU8()
		cfg.GyroFilter2.Type = in.ReadU8()
		cfg.DtermFilter2.Freq = in.ReadU16()
	}
	if in.Remaining() >= 9 {
		cfg.DtermFilter2.Type = in.ReadU8()
		cfg.GyroDynLpfFilter.Cutoff = in.ReadU16()
		cfg.GyroDynLpfFilter.Freq = in.ReadU16()
		cfg.DtermDynLpfFilter.Cutoff = in.ReadU16()
		cfg.DtermDynLpfFilter.Freq = in.ReadU16()
	}
	if in.Remaining() >= 8 {
		in.Advance(8) // dyn notch and rpm filter
	}
	if in.Remaining() >= 2 {
		in.ReadU16() // dyn notch max hz
	}
	m.Reload()
}

func handlePidController(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(1) // betaflight
}

func handlePid(_ *InboundMessage, out *OutboundMessage, m Model) {
	for _, p := range m.Config().Pid {
		out.WriteU8(p.P)
		out.WriteU8(p.I)
		out.WriteU8(p.D)
	}
}

func handleSetPid(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	for i := range cfg.Pid {
		cfg.Pid[i].P = in.ReadU8()
		cfg.Pid[i].I = in.ReadU8()
		cfg.Pid[i].D = in.ReadU8()
	}
	m.Reload()
}

func handlePidAdvanced(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU16(0)
	out.WriteU16(0)
	out.WriteU16(0) // yaw p limit
	out.WriteU8(0)
	out.WriteU8(0) // vbat pid compensation
	out.WriteU8(0) // feed forward transition
	out.WriteU8(uint8(min(cfg.DtermSetpointWeight, 255)))
	out.WriteU8(0)
	out.WriteU8(0)
	out.WriteU8(0)
	out.WriteU16(0) // rate accel limit
	out.WriteU16(0) // yaw rate accel limit
	out.WriteU8(cfg.AngleLimit)
	out.WriteU8(0)  // level sensitivity
	out.WriteU16(0) // iterm throttle threshold
	out.WriteU16(0) // iterm accelerator gain
	out.WriteU16(uint16(cfg.DtermSetpointWeight))
	out.WriteU8(0) // iterm rotation
	out.WriteU8(0) // smart feed forward
	out.WriteU8(0) // iterm relax
	out.WriteU8(0) // iterm relax type
	out.WriteU8(0) // abs control gain
	out.WriteU8(0) // throttle boost
	out.WriteU8(0) // acro trainer max angle
	out.WriteU16(cfg.Pid[fc.PidRoll].F)
	out.WriteU16(cfg.Pid[fc.PidPitch].F)
	out.WriteU16(cfg.Pid[fc.PidYaw].F)
	out.WriteU8(0) // antigravity mode
	out.WriteU8(0) // d min roll
	out.WriteU8(0) // d min pitch
	out.WriteU8(0) // d min yaw
	out.WriteU8(0) // d min gain
	out.WriteU8(0) // d min advance
	out.WriteU8(0) // integrated yaw
	out.WriteU8(0) // integrated yaw relax
	out.WriteU8(0) // iterm relax cutoff
}

func handleSetPidAdvanced(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	in.Advance(6) // legacy limits
	in.Advance(3) // reserved, vbat compensation, feed forward transition
	cfg.DtermSetpointWeight = int16(in.ReadU8())
	in.Advance(3) // reserved
	in.Advance(4) // rate accel limits
	if in.Remaining() >= 2 {
		cfg.AngleLimit = in.ReadU8()
		in.ReadU8() // level sensitivity
	}
	if in.Remaining() >= 4 {
		in.Advance(4) // iterm threshold and gain
	}
	if in.Remaining() >= 2 {
		cfg.DtermSetpointWeight = int16(in.ReadU16())
	}
	if in.Remaining() >= 14 {
		in.Advance(7) // iterm rotation .. acro trainer
		cfg.Pid[fc.PidRoll].F = in.ReadU16()
		cfg.Pid[fc.PidPitch].F = in.ReadU16()
		cfg.Pid[fc.PidYaw].F = in.ReadU16()
		in.ReadU8() // antigravity mode
	}
	if in.Remaining() >= 7 {
		in.Advance(7) // d min, integrated yaw
	}
	if in.Remaining() >= 1 {
		in.ReadU8() // iterm relax cutoff
	}
	m.Reload()
}
