// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import "github.com/Thermoquad/gyrostat/pkg/fc"

// Mode range steps are 25 µs starting at 900 µs.
const (
	rangeBase = 900
	rangeStep = 25
)

// rcTuningMinLen is the fixed part of SET_RC_TUNING.
const rcTuningMinLen = 10

func registerRxHandlers(t *Table) {
	t.Register(MspRxConfig, handleRxConfig)
	t.Register(MspSetRxConfig, handleSetRxConfig)
	t.Register(MspRxMap, handleRxMap)
	t.Register(MspRssiConfig, handleRssiConfig)
	t.Register(MspRcDeadband, handleRcDeadband)
	t.Register(MspSetRcDeadband, handleSetRcDeadband)
	t.Register(MspFailsafeConfig, handleFailsafeConfig)
	t.Register(MspSetFailsafeConfig, handleSetFailsafeConfig)
	t.Register(MspRxFailConfig, handleRxFailConfig)
	t.Register(MspSetRxFailConfig, handleSetRxFailConfig)
	t.Register(MspRc, handleRc)
	t.Register(MspRcTuning, handleRcTuning)
	t.Register(MspSetRcTuning, handleSetRcTuning)
	t.Register(MspModeRanges, handleModeRanges)
	t.Register(MspModeRangesExtra, handleModeRangesExtra)
	t.Register(MspSetModeRange, handleSetModeRange)
	t.Register(MspArmingConfig, handleArmingConfig)
}

func handleRxConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	rx := &m.Config().Input
	out.WriteU8(rx.SerialRxProvider)
	out.WriteU16(rx.MaxCheck)
	out.WriteU16(rx.MidRc)
	out.WriteU16(rx.MinCheck)
	out.WriteU8(0) // spektrum bind
	out.WriteU16(rx.MinRc)
	out.WriteU16(rx.MaxRc)
	out.WriteU8(rx.InterpolationMode)
	out.WriteU8(rx.InterpolationInterval)
	out.WriteU16(1500) // airmode activate threshold
	out.WriteU8(0)     // rx spi protocol
	out.WriteU32(0)    // rx spi id
	out.WriteU8(0)     // rx spi channel count
	out.WriteU8(0)     // fpv camera angle
	out.WriteU8(2)     // interpolation channels: RPYT
	out.WriteU8(0)     // rc smoothing type
	out.WriteU8(0)     // rc smoothing input cutoff
	out.WriteU8(0)     // rc smoothing derivative cutoff
	out.WriteU8(0)     // rc smoothing input type
	out.WriteU8(0)     // rc smoothing derivative type
	out.WriteU8(0)     // usb type
	out.WriteU8(0)     // rc smoothing auto factor
}

// handleSetRxConfig decodes the fixed prefix, then each trailing group the
// peer sent. Only the interpolation group carries settings kept here.
func handleSetRxConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	rx := &m.Config().Input
	rx.SerialRxProvider = in.ReadU8()
	rx.MaxCheck = in.ReadU16()
	rx.MidRc = in.ReadU16()
	rx.MinCheck = in.ReadU16()
	in.ReadU8() // spektrum bind
	rx.MinRc = in.ReadU16()
	rx.MaxRc = in.ReadU16()
	if in.Remaining() >= 4 {
		rx.InterpolationMode = in.ReadU8()
		rx.InterpolationInterval = in.ReadU8()
		in.ReadU16() // airmode activate threshold
	}
	if in.Remaining() >= 6 {
		in.Advance(6) // rx spi protocol, id, channel count
	}
	if in.Remaining() >= 1 {
		in.ReadU8() // fpv camera angle
	}
	if in.Remaining() >= 6 {
		in.Advance(6) // interpolation channels, rc smoothing
	}
	if in.Remaining() >= 1 {
		in.ReadU8() // usb type
	}
	if in.Remaining() >= 1 {
		in.ReadU8() // rc smoothing auto factor
	}
	m.Reload()
}

func handleRxMap(_ *InboundMessage, out *OutboundMessage, m Model) {
	for _, ch := range m.Config().Input.Channel {
		out.WriteU8(ch.Map)
	}
}

func handleRssiConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(0)
}

func handleRcDeadband(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteU8(m.Config().Input.Deadband)
	out.WriteU8(0)  // yaw
	out.WriteU8(0)  // alt hold
	out.WriteU16(0) // 3d throttle
}

func handleSetRcDeadband(in *InboundMessage, _ *OutboundMessage, m Model) {
	m.Config().Input.Deadband = in.ReadU8()
	in.ReadU8()  // yaw
	in.ReadU8()  // alt hold
	in.ReadU16() // 3d throttle
}

func handleFailsafeConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(0)     // delay
	out.WriteU8(0)     // off delay
	out.WriteU16(1000) // throttle
	out.WriteU8(0)     // kill switch
	out.WriteU16(0)    // throttle low delay
	out.WriteU8(1)     // procedure: drop
}

// handleSetFailsafeConfig accepts the record but keeps the fixed failsafe
// behaviour.
func handleSetFailsafeConfig(in *InboundMessage, _ *OutboundMessage, _ Model) {
	in.ReadU8()  // delay
	in.ReadU8()  // off delay
	in.ReadU16() // throttle
	in.ReadU8()  // kill switch
	in.ReadU16() // throttle low delay
	in.ReadU8()  // procedure
}

func handleRxFailConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	for _, ch := range m.Config().Input.Channel {
		out.WriteU8(ch.FsMode)
		out.WriteU16(ch.FsValue)
	}
}

func handleSetRxFailConfig(in *InboundMessage, out *OutboundMessage, m Model) {
	i := int(in.ReadU8())
	if i >= fc.InputChannels {
		out.Result = ResultError
		return
	}
	ch := &m.Config().Input.Channel[i]
	ch.FsMode = in.ReadU8()
	ch.FsValue = in.ReadU16()
}

func handleRc(_ *InboundMessage, out *OutboundMessage, m Model) {
	for _, us := range m.State().InputUs {
		out.WriteU16(uint16(lrint(us)))
	}
}

func handleRcTuning(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	rx := &cfg.Input
	out.WriteU8(rx.Rate[fc.AxisRoll])
	out.WriteU8(rx.Expo[fc.AxisRoll])
	for _, r := range rx.SuperRate {
		out.WriteU8(r)
	}
	out.WriteU8(cfg.TpaScale)
	out.WriteU8(50) // throttle mid
	out.WriteU8(0)  // throttle expo
	out.WriteU16(cfg.TpaBreakpoint)
	out.WriteU8(rx.Expo[fc.AxisYaw])
	out.WriteU8(rx.Rate[fc.AxisYaw])
	out.WriteU8(rx.Rate[fc.AxisPitch])
	out.WriteU8(rx.Expo[fc.AxisPitch])
	out.WriteU8(0)     // throttle limit type
	out.WriteU8(100)   // throttle limit percent
	out.WriteU16(1998) // rate limit roll
	out.WriteU16(1998) // rate limit pitch
	out.WriteU16(1998) // rate limit yaw
}

// handleSetRcTuning requires the fixed ten-byte prefix. Older peers send a
// single roll/pitch rate and expo; pitch keeps following roll while the two
// are equal, until a peer sends pitch explicitly.
func handleSetRcTuning(in *InboundMessage, out *OutboundMessage, m Model) {
	if in.Remaining() < rcTuningMinLen {
		out.Result = ResultError
		return
	}
	cfg := m.Config()
	rx := &cfg.Input

	rate := in.ReadU8()
	if rx.Rate[fc.AxisPitch] == rx.Rate[fc.AxisRoll] {
		rx.Rate[fc.AxisPitch] = rate
	}
	rx.Rate[fc.AxisRoll] = rate

	expo := in.ReadU8()
	if rx.Expo[fc.AxisPitch] == rx.Expo[fc.AxisRoll] {
		rx.Expo[fc.AxisPitch] = expo
	}
	rx.Expo[fc.AxisRoll] = expo

	for i := range rx.SuperRate {
		rx.SuperRate[i] = in.ReadU8()
	}
	cfg.TpaScale = min(in.ReadU8(), 90)
	in.ReadU8() // throttle mid
	in.ReadU8() // throttle expo
	cfg.TpaBreakpoint = clampU16(in.ReadU16(), 1000, 2000)

	if in.Remaining() >= 1 {
		rx.Expo[fc.AxisYaw] = in.ReadU8()
	}
	if in.Remaining() >= 1 {
		rx.Rate[fc.AxisYaw] = in.ReadU8()
	}
	if in.Remaining() >= 1 {
		rx.Rate[fc.AxisPitch] = in.ReadU8()
	}
	if in.Remaining() >= 1 {
		rx.Expo[fc.AxisPitch] = in.ReadU8()
	}
}

func clampU16(v, lo, hi uint16) uint16 {
	return max(lo, min(v, hi))
}

func handleModeRanges(_ *InboundMessage, out *OutboundMessage, m Model) {
	for _, c := range m.Config().Conditions {
		out.WriteU8(c.ID)
		out.WriteU8(c.Ch - fc.AuxChannelOffset)
		out.WriteU8(uint8((c.Min - rangeBase) / rangeStep))
		out.WriteU8(uint8((c.Max - rangeBase) / rangeStep))
	}
}

func handleModeRangesExtra(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteU8(fc.ActuatorConditions)
	for _, c := range m.Config().Conditions {
		out.WriteU8(c.ID)
		out.WriteU8(c.LogicMode)
		out.WriteU8(c.LinkID)
	}
}

// handleSetModeRange updates one condition. Logic mode and link id are an
// optional trailing pair.
func handleSetModeRange(in *InboundMessage, out *OutboundMessage, m Model) {
	i := int(in.ReadU8())
	if i >= fc.ActuatorConditions {
		out.Result = ResultError
		return
	}
	c := &m.Config().Conditions[i]
	c.ID = in.ReadU8()
	c.Ch = in.ReadU8() + fc.AuxChannelOffset
	c.Min = uint16(in.ReadU8())*rangeStep + rangeBase
	c.Max = uint16(in.ReadU8())*rangeStep + rangeBase
	if in.Remaining() >= 2 {
		c.LogicMode = in.ReadU8()
		c.LinkID = in.ReadU8()
	}
}

func handleArmingConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(5)   // auto disarm delay
	out.WriteU8(0)   // disarm kill switch
	out.WriteU8(180) // small angle
}
