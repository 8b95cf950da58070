// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fc

import "time"

// State is the runtime state published by the flight loop. The protocol
// engine treats it as read-only except for the explicit output override
// (OutputDisarmed) and calibration requests.
type State struct {
	LoopTime      time.Duration
	I2CErrorCount uint16
	Load          uint16 // percent * 10

	AccelPresent bool
	BaroPresent  bool
	MagPresent   bool
	GyroPresent  bool

	ModeMask            uint32
	ArmingDisabledFlags uint32

	Battery Battery

	Angle        [3]float32 // rad
	BaroAltitude float32    // m
	Accel        [3]float32 // m/s²
	Gyro         [3]float32 // rad/s
	Mag          [3]float32

	InputUs        [InputChannels]float32
	OutputUs       [OutputChannels]uint16
	OutputDisarmed [OutputChannels]uint16
	MixerCount     uint8

	Debug [DebugValueCount]int16

	GyroCalibrationPending bool
	MagCalibrationPending  bool

	UID [UIDSize]byte
}

// Battery describes the detected battery.
type Battery struct {
	Voltage uint8 // 0.1 V
	Cells   uint8
}

// Identity describes the firmware and board answering on the channel.
type Identity struct {
	FlightControllerID string // 4 chars
	BoardID            string // 4 chars
	VersionMajor       uint8
	VersionMinor       uint8
	VersionPatch       uint8
	BuildDate          string // "Jan 02 2006"
	BuildTime          string // "15:04:05"
	GitRevision        string // 7 chars
}

// DefaultIdentity returns the identity reported when the host sets none.
func DefaultIdentity() Identity {
	return Identity{
		FlightControllerID: "BTFL",
		BoardID:            "ESPF",
		VersionMajor:       4,
		VersionMinor:       1,
		VersionPatch:       0,
		BuildDate:          "Jan 01 2025",
		BuildTime:          "00:00:00",
		GitRevision:        "0000000",
	}
}
