// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fc describes the flight controller data the configuration channel
// reads and writes: persistent configuration, runtime state and identity.
//
// The types here are plain values. Sensor drivers, attitude estimation, the
// PID loop and the output mixer own the meaning of these fields; the
// protocol engine only moves them across the wire.
package fc

// Table sizes
const (
	ModelNameLen       = 16
	ActuatorConditions = 8
	InputChannels      = 8
	OutputChannels     = 8
	PidItemCount       = 10
	SerialPortCount    = 3
	DebugValueCount    = 4
	DebugModeCount     = 44
	UIDSize            = 12
)

// Axis indexes
const (
	AxisRoll = iota
	AxisPitch
	AxisYaw
)

// PID item indexes
const (
	PidRoll = iota
	PidPitch
	PidYaw
	PidAlt
	PidPos
	PidPosR
	PidNavR
	PidLevel
	PidMag
	PidVel
)

// AuxChannelOffset is the first input channel usable for mode conditions.
const AuxChannelOffset = 4

// Serial port identifiers as seen on the wire
const (
	SerialUART0     = 0
	SerialUART1     = 1
	SerialUART2     = 2
	SerialSoftFirst = 30
)

// Serial function bits
const (
	SerialFunctionMSP           = 1 << 0
	SerialFunctionGPS           = 1 << 1
	SerialFunctionTelemetryHoTT = 1 << 3
	SerialFunctionRxSerial      = 1 << 6
	SerialFunctionBlackbox      = 1 << 7
)

// Mixer types (Betaflight numbering)
const (
	MixerTri      = 1
	MixerQuadP    = 2
	MixerQuadX    = 3
	MixerBicopter = 4
	MixerHex6     = 7
	MixerHex6X    = 10
	MixerOctoX8   = 11
	MixerCustom   = 23
)

// Gyro DLPF settings
const (
	GyroDlpf256 = iota
	GyroDlpf188
	GyroDlpf98
	GyroDlpf42
	GyroDlpf20
	GyroDlpf10
	GyroDlpf5
	GyroDlpfEx
)

// Filter types
const (
	FilterPT1 = iota
	FilterBiquad
	FilterFIR
	FilterNotch
	FilterNone
)

// Sensor device ids
const (
	DeviceNone    = 0
	DeviceDefault = 1
	AccelMPU6050  = 3
	BaroBMP085    = 2
	MagHMC5883    = 2
)

// ArmingDisabledFlagsCount is the number of arming-disable reasons reported.
const ArmingDisabledFlagsCount = 20

// StandardGravity in m/s².
const StandardGravity = 9.80665
