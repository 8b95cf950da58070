// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fc

// Mode is a flight mode (box) identifier.
type Mode uint8

// Flight modes
const (
	ModeArmed Mode = iota
	ModeAngle
	ModeAirmode
	ModeBuzzer
	ModeFailsafe
	ModeCount
)

// ModeNames lists the box names in Mode order.
var ModeNames = [ModeCount]string{"ARM", "ANGLE", "AIRMODE", "BUZZER", "FAILSAFE"}

// String returns the box name of the mode
func (m Mode) String() string {
	if m < ModeCount {
		return ModeNames[m]
	}
	return "UNKNOWN"
}

// Mask returns the bit of the mode in State.ModeMask.
func (m Mode) Mask() uint32 {
	return 1 << uint32(m)
}

// Feature is a bit in Config.FeatureMask.
type Feature uint32

// Features (Betaflight bit positions)
const (
	FeatureRxPPM          Feature = 1 << 0
	FeatureInflightAccCal Feature = 1 << 2
	FeatureRxSerial       Feature = 1 << 3
	FeatureMotorStop      Feature = 1 << 4
	FeatureServoTilt      Feature = 1 << 5
	FeatureSoftSerial     Feature = 1 << 6
	FeatureGPS            Feature = 1 << 7
	FeatureTelemetry      Feature = 1 << 10
	FeatureAirmode        Feature = 1 << 22
	FeatureDynamicFilter  Feature = 1 << 29
)

// Arming disable reasons reported in State.ArmingDisabledFlags
const (
	ArmingDisabledNoGyro      uint32 = 1 << 0
	ArmingDisabledRxFailsafe  uint32 = 1 << 2
	ArmingDisabledThrottle    uint32 = 1 << 7
	ArmingDisabledCalibrating uint32 = 1 << 12
)
