// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package msp implements the MultiWii Serial Protocol (v1) configuration
// channel of a flight controller.
//
// Frames look like '$' 'M' <dir> <length> <opcode> <payload> <checksum>,
// where the checksum is the XOR of length, opcode and every payload byte.
// The package provides the byte-at-a-time frame parser, a bounded
// little-endian cursor codec over message payloads, the opcode handler
// table, the response encoder and the Engine that glues them together, plus
// a small request/response Client for ground tooling.
package msp

// Protocol framing bytes
const (
	HeaderStart = '$'
	HeaderM     = 'M'

	DirCommandByte = '<'
	DirReplyByte   = '>'
	DirErrorByte   = '!'
)

// MaxPayloadSize is the payload capacity of inbound and outbound messages.
// A length byte above this is rejected before any payload is buffered.
const MaxPayloadSize = 192

// FrameOverhead is the number of non-payload bytes in a frame.
const FrameOverhead = 6

// Protocol version reported by API_VERSION
const (
	ProtocolVersion = 0
	APIVersionMajor = 1
	APIVersionMinor = 42
)

// Fixed field widths
const (
	FlightControllerIDLen = 4
	BoardIDLen            = 4
	BuildDateLen          = 11
	BuildTimeLen          = 8
	GitRevisionLen        = 7
)

// Opcodes - identity and system
const (
	MspAPIVersion = 1
	MspFCVariant  = 2
	MspFCVersion  = 3
	MspBoardInfo  = 4
	MspBuildInfo  = 5
	MspName       = 10
	MspSetName    = 11
	MspReboot     = 68
	MspUID        = 160
)

// Opcodes - configuration
const (
	MspBatteryConfig         = 32
	MspSetBatteryConfig      = 33
	MspModeRanges            = 34
	MspSetModeRange          = 35
	MspFeatureConfig         = 36
	MspSetFeatureConfig      = 37
	MspBoardAlignmentConfig  = 38
	MspMixerConfig           = 42
	MspSetMixerConfig        = 43
	MspRxConfig              = 44
	MspSetRxConfig           = 45
	MspRssiConfig            = 50
	MspCFSerialConfig        = 54
	MspSetCFSerialConfig     = 55
	MspVoltageMeterConfig    = 56
	MspSetVoltageMeterConfig = 57
	MspPidController         = 59
	MspArmingConfig          = 61
	MspRxMap                 = 64
	MspDataflashSummary      = 70
	MspFailsafeConfig        = 75
	MspSetFailsafeConfig     = 76
	MspRxFailConfig          = 77
	MspSetRxFailConfig       = 78
	MspBlackboxConfig        = 80
	MspSetBlackboxConfig     = 81
	MspVtxConfig             = 88
	MspAdvancedConfig        = 90
	MspSetAdvancedConfig     = 91
	MspFilterConfig          = 92
	MspSetFilterConfig       = 93
	MspPidAdvanced           = 94
	MspSetPidAdvanced        = 95
	MspSensorConfig          = 96
	MspSetSensorConfig       = 97
	MspServoConfigurations   = 120
	MspMotor3DConfig         = 124
	MspRcDeadband            = 125
	MspSensorAlignment       = 126
	MspMotorConfig           = 131
	MspGPSConfig             = 132
	MspCompassConfig         = 133
	MspBeeperConfig          = 184
	MspSetBeeperConfig       = 185
	MspSetPid                = 202
	MspSetRcTuning           = 204
	MspSetServoConfiguration = 212
	MspSetRcDeadband         = 218
	MspSetSensorAlignment    = 220
	MspSetMotorConfig        = 222
	MspModeRangesExtra       = 238
	MspAccTrim               = 240
)

// Opcodes - telemetry
const (
	MspStatus        = 101
	MspRawIMU        = 102
	MspServo         = 103
	MspMotor         = 104
	MspRc            = 105
	MspAttitude      = 108
	MspAltitude      = 109
	MspAnalog        = 110
	MspRcTuning      = 111
	MspPid           = 112
	MspBoxNames      = 116
	MspPidNames      = 117
	MspBoxIDs        = 119
	MspVoltageMeters = 128
	MspCurrentMeters = 129
	MspBatteryState  = 130
	MspStatusEx      = 150
	MspDebug         = 254
)

// Opcodes - actions
const (
	MspAccCalibration = 205
	MspMagCalibration = 206
	MspResetConf      = 208
	MspSetMotor       = 214
	MspEepromWrite    = 250
)

// VbatMeterID is the id of the battery ADC voltage meter.
const VbatMeterID = 10
