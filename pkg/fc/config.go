// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fc

// Config holds the persistent flight controller configuration.
//
// Config is a plain value: copying it takes a full snapshot, which is what
// the protocol engine relies on to roll back a rejected update. Integer CBOR
// keys keep the EEPROM image compact and stable across field renames.
type Config struct {
	ModelName   string `cbor:"1,keyasint"`
	FeatureMask uint32 `cbor:"2,keyasint"`
	MixerType   uint8  `cbor:"3,keyasint"`
	YawReverse  uint8  `cbor:"4,keyasint"`

	Conditions [ActuatorConditions]Condition `cbor:"5,keyasint"`

	AccelDev   uint8 `cbor:"6,keyasint"`
	BaroDev    uint8 `cbor:"7,keyasint"`
	MagDev     uint8 `cbor:"8,keyasint"`
	GyroAlign  uint8 `cbor:"9,keyasint"`
	AccelAlign uint8 `cbor:"10,keyasint"`
	MagAlign   uint8 `cbor:"11,keyasint"`

	VbatCellWarning uint8 `cbor:"12,keyasint"`
	VbatScale       uint8 `cbor:"13,keyasint"`
	VbatResDiv      uint8 `cbor:"14,keyasint"`
	VbatResMult     uint8 `cbor:"15,keyasint"`

	Serial         [SerialPortCount]SerialPortConfig `cbor:"16,keyasint"`
	BlackboxDev    uint8                             `cbor:"17,keyasint"`
	BlackboxPdenom uint16                            `cbor:"18,keyasint"`
	BeeperMask     uint32                            `cbor:"19,keyasint"`

	Input  InputConfig  `cbor:"20,keyasint"`
	Output OutputConfig `cbor:"21,keyasint"`

	TpaScale      uint8  `cbor:"22,keyasint"`
	TpaBreakpoint uint16 `cbor:"23,keyasint"`
	GyroSync      uint8  `cbor:"24,keyasint"`
	LoopSync      uint8  `cbor:"25,keyasint"`
	DebugMode     uint8  `cbor:"26,keyasint"`
	GyroDlpf      uint8  `cbor:"27,keyasint"`

	GyroFilter        FilterConfig `cbor:"28,keyasint"`
	GyroFilter2       FilterConfig `cbor:"29,keyasint"`
	GyroDynLpfFilter  FilterConfig `cbor:"30,keyasint"`
	GyroNotch1Filter  FilterConfig `cbor:"31,keyasint"`
	GyroNotch2Filter  FilterConfig `cbor:"32,keyasint"`
	DtermFilter       FilterConfig `cbor:"33,keyasint"`
	DtermFilter2      FilterConfig `cbor:"34,keyasint"`
	DtermDynLpfFilter FilterConfig `cbor:"35,keyasint"`
	DtermNotchFilter  FilterConfig `cbor:"36,keyasint"`
	YawFilter         FilterConfig `cbor:"37,keyasint"`

	Pid                 [PidItemCount]PidConfig `cbor:"38,keyasint"`
	DtermSetpointWeight int16                   `cbor:"39,keyasint"`
	AngleLimit          uint8                   `cbor:"40,keyasint"`
}

// Condition activates a mode while an aux channel is inside [Min, Max] µs.
type Condition struct {
	_         struct{} `cbor:",toarray"`
	ID        uint8
	Ch        uint8
	Min       uint16
	Max       uint16
	LogicMode uint8
	LinkID    uint8
}

// SerialPortConfig assigns functions and baud rates to one serial port.
type SerialPortConfig struct {
	_                 struct{} `cbor:",toarray"`
	ID                uint8
	FunctionMask      uint16
	BaudIndex         uint8
	BlackboxBaudIndex uint8
}

// FilterConfig is a generic filter setting. Cutoff is used by notch and
// dynamic filters (as the lower bound for the latter).
type FilterConfig struct {
	_      struct{} `cbor:",toarray"`
	Type   uint8
	Freq   uint16
	Cutoff uint16
}

// PidConfig holds the gains of one PID item.
type PidConfig struct {
	_ struct{} `cbor:",toarray"`
	P uint8
	I uint8
	D uint8
	F uint16
}

// InputChannelConfig configures one receiver channel.
type InputChannelConfig struct {
	_       struct{} `cbor:",toarray"`
	Map     uint8
	FsMode  uint8
	FsValue uint16
}

// InputConfig configures the receiver and stick rates.
type InputConfig struct {
	Channel               [InputChannels]InputChannelConfig `cbor:"1,keyasint"`
	Deadband              uint8                             `cbor:"2,keyasint"`
	SerialRxProvider      uint8                             `cbor:"3,keyasint"`
	MinCheck              uint16                            `cbor:"4,keyasint"`
	MidRc                 uint16                            `cbor:"5,keyasint"`
	MaxCheck              uint16                            `cbor:"6,keyasint"`
	MinRc                 uint16                            `cbor:"7,keyasint"`
	MaxRc                 uint16                            `cbor:"8,keyasint"`
	InterpolationMode     uint8                             `cbor:"9,keyasint"`
	InterpolationInterval uint8                             `cbor:"10,keyasint"`
	Rate                  [3]uint8                          `cbor:"11,keyasint"`
	Expo                  [3]uint8                          `cbor:"12,keyasint"`
	SuperRate             [3]uint8                          `cbor:"13,keyasint"`
}

// OutputChannelConfig configures one servo/motor output.
type OutputChannelConfig struct {
	_       struct{} `cbor:",toarray"`
	Min     uint16
	Max     uint16
	Neutral uint16
}

// OutputConfig configures the motor/servo outputs.
type OutputConfig struct {
	MinThrottle uint16                              `cbor:"1,keyasint"`
	MaxThrottle uint16                              `cbor:"2,keyasint"`
	MinCommand  uint16                              `cbor:"3,keyasint"`
	Async       uint8                               `cbor:"4,keyasint"`
	Protocol    uint8                               `cbor:"5,keyasint"`
	Rate        uint16                              `cbor:"6,keyasint"`
	DshotIdle   uint16                              `cbor:"7,keyasint"`
	Channel     [OutputChannels]OutputChannelConfig `cbor:"8,keyasint"`
	Pin         [OutputChannels]int8                `cbor:"9,keyasint"` // -1 = not assigned
}
