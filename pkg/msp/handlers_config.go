// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import "github.com/Thermoquad/gyrostat/pkg/fc"

// serialRecordSize is the size of one CF_SERIAL_CONFIG port record.
const serialRecordSize = 1 + 2 + 4

func registerConfigHandlers(t *Table) {
	t.Register(MspFeatureConfig, handleFeatureConfig)
	t.Register(MspSetFeatureConfig, handleSetFeatureConfig)
	t.Register(MspBatteryConfig, handleBatteryConfig)
	t.Register(MspSetBatteryConfig, handleSetBatteryConfig)
	t.Register(MspVoltageMeterConfig, handleVoltageMeterConfig)
	t.Register(MspSetVoltageMeterConfig, handleSetVoltageMeterConfig)
	t.Register(MspMixerConfig, handleMixerConfig)
	t.Register(MspSetMixerConfig, handleSetMixerConfig)
	t.Register(MspSensorConfig, handleSensorConfig)
	t.Register(MspSetSensorConfig, handleSetSensorConfig)
	t.Register(MspSensorAlignment, handleSensorAlignment)
	t.Register(MspSetSensorAlignment, handleSetSensorAlignment)
	t.Register(MspCFSerialConfig, handleCFSerialConfig)
	t.Register(MspSetCFSerialConfig, handleSetCFSerialConfig)
	t.Register(MspBlackboxConfig, handleBlackboxConfig)
	t.Register(MspSetBlackboxConfig, handleSetBlackboxConfig)
	t.Register(MspBeeperConfig, handleBeeperConfig)
	t.Register(MspSetBeeperConfig, handleSetBeeperConfig)

	t.Register(MspBoardAlignmentConfig, handleBoardAlignmentConfig)
	t.Register(MspGPSConfig, handleGPSConfig)
	t.Register(MspCompassConfig, handleCompassConfig)
	t.Register(MspAccTrim, handleAccTrim)
	t.Register(MspVtxConfig, handleVtxConfig)
}

func handleFeatureConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteU32(m.Config().FeatureMask)
}

func handleSetFeatureConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	m.Config().FeatureMask = in.ReadU32()
	m.Reload()
}

// Battery cell voltages are carried in 0.1 V by the legacy fields and in
// 0.01 V by the trailing ones.
func handleBatteryConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(34) // min cell
	out.WriteU8(42) // max cell
	out.WriteU8(cfg.VbatCellWarning)
	out.WriteU16(0) // capacity
	out.WriteU8(1)  // voltage meter source: ADC
	out.WriteU8(0)  // current meter source: none
	out.WriteU16(340)
	out.WriteU16(420)
	out.WriteU16(uint16(cfg.VbatCellWarning) * 10)
}

func handleSetBatteryConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	in.ReadU8() // min cell
	in.ReadU8() // max cell
	cfg.VbatCellWarning = in.ReadU8()
	in.ReadU16() // capacity
	in.ReadU8()  // voltage meter source
	in.ReadU8()  // current meter source
	if in.Remaining() >= 6 {
		in.ReadU16()
		in.ReadU16()
		cfg.VbatCellWarning = uint8((in.ReadU16() + 5) / 10)
	}
}

func handleVoltageMeterConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(1) // sensor count
	out.WriteU8(5) // record size
	out.WriteU8(VbatMeterID)
	out.WriteU8(0) // resistor divider
	out.WriteU8(cfg.VbatScale)
	out.WriteU8(cfg.VbatResDiv)
	out.WriteU8(cfg.VbatResMult)
}

// handleSetVoltageMeterConfig only accepts the battery ADC meter; other
// ids are ignored.
func handleSetVoltageMeterConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	if in.ReadU8() != VbatMeterID {
		return
	}
	cfg := m.Config()
	cfg.VbatScale = in.ReadU8()
	cfg.VbatResDiv = in.ReadU8()
	cfg.VbatResMult = in.ReadU8()
}

func handleMixerConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(cfg.MixerType)
	out.WriteU8(cfg.YawReverse)
}

func handleSetMixerConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	cfg.MixerType = in.ReadU8()
	cfg.YawReverse = in.ReadU8()
}

func handleSensorConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(cfg.AccelDev)
	out.WriteU8(cfg.BaroDev)
	out.WriteU8(cfg.MagDev)
}

func handleSetSensorConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	cfg.AccelDev = in.ReadU8()
	cfg.BaroDev = in.ReadU8()
	cfg.MagDev = in.ReadU8()
	m.Reload()
}

func handleSensorAlignment(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(cfg.GyroAlign)
	out.WriteU8(cfg.GyroAlign) // accel follows gyro
	out.WriteU8(cfg.MagAlign)
	out.WriteU8(1) // gyro detection mask
	out.WriteU8(cfg.GyroAlign)
	out.WriteU8(0) // second gyro
}

// handleSetSensorAlignment takes the gyro alignment from the per-gyro group
// when present, otherwise from the legacy field. Accel always follows gyro.
func handleSetSensorAlignment(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	gyroAlign := in.ReadU8()
	in.ReadU8() // accel, deprecated
	cfg.MagAlign = in.ReadU8()
	if in.Remaining() >= 3 {
		in.ReadU8() // gyro to use
		cfg.GyroAlign = in.ReadU8()
		in.ReadU8() // second gyro
	} else {
		cfg.GyroAlign = gyroAlign
	}
	cfg.AccelAlign = cfg.GyroAlign
}

// handleCFSerialConfig lists the serial ports. Listing stops at the first
// soft serial port unless the soft serial feature is enabled.
func handleCFSerialConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	for _, port := range cfg.Serial {
		if port.ID >= fc.SerialSoftFirst && !m.IsFeatureActive(fc.FeatureSoftSerial) {
			break
		}
		out.WriteU8(port.ID)
		out.WriteU16(port.FunctionMask)
		out.WriteU8(port.BaudIndex)
		out.WriteU8(0) // gps baud
		out.WriteU8(0) // telemetry baud
		out.WriteU8(port.BlackboxBaudIndex)
	}
}

// handleSetCFSerialConfig applies every complete port record. Records for
// ports this board does not have are skipped.
func handleSetCFSerialConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	for in.Remaining() >= serialRecordSize {
		id := in.ReadU8()
		if int(id) >= fc.SerialPortCount {
			in.Advance(serialRecordSize - 1)
			continue
		}
		port := &cfg.Serial[id]
		port.ID = id
		port.FunctionMask = in.ReadU16()
		port.BaudIndex = in.ReadU8()
		in.ReadU8() // gps baud
		in.ReadU8() // telemetry baud
		port.BlackboxBaudIndex = in.ReadU8()
	}
	m.Reload()
}

func handleBlackboxConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	cfg := m.Config()
	out.WriteU8(1) // supported
	out.WriteU8(cfg.BlackboxDev)
	out.WriteU8(1) // rate num
	out.WriteU8(1) // rate denom
	out.WriteU16(cfg.BlackboxPdenom)
}

// handleSetBlackboxConfig keeps the current p_denom when the peer only
// sends the legacy rate fraction.
func handleSetBlackboxConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	cfg := m.Config()
	cfg.BlackboxDev = in.ReadU8()
	in.ReadU8() // rate num
	in.ReadU8() // rate denom
	if in.Remaining() >= 2 {
		cfg.BlackboxPdenom = in.ReadU16()
	}
}

// The beeper mask travels inverted: the wire carries disabled beepers.
func handleBeeperConfig(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteU32(^m.Config().BeeperMask)
	out.WriteU8(0)  // dshot beacon tone
	out.WriteU32(0) // dshot beacon off flags
}

func handleSetBeeperConfig(in *InboundMessage, _ *OutboundMessage, m Model) {
	m.Config().BeeperMask = ^in.ReadU32()
}

func handleBoardAlignmentConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU16(0) // roll
	out.WriteU16(0) // pitch
	out.WriteU16(0) // yaw
}

func handleGPSConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(0) // provider
	out.WriteU8(0) // sbas
	out.WriteU8(0) // auto config
	out.WriteU8(0) // auto baud
}

func handleCompassConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU16(0) // declination
}

func handleAccTrim(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU16(0) // pitch
	out.WriteU16(0) // roll
}

func handleVtxConfig(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(0xff) // type unknown
	out.WriteU8(0)    // band
	out.WriteU8(0)    // channel
	out.WriteU8(0)    // power
	out.WriteU8(0)    // status
	out.WriteU16(0)   // frequency
	out.WriteU8(0)    // ready
	out.WriteU8(0)    // low power disarm
	out.WriteU16(0)   // pit mode frequency
	out.WriteU8(0)    // vtx table available
	out.WriteU8(0)    // bands
	out.WriteU8(0)    // channels
	out.WriteU8(0)    // power levels
}
