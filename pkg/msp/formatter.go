// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var opcodeNames = [256]string{
	// Identity and system
	MspAPIVersion: "API_VERSION",
	MspFCVariant:  "FC_VARIANT",
	MspFCVersion:  "FC_VERSION",
	MspBoardInfo:  "BOARD_INFO",
	MspBuildInfo:  "BUILD_INFO",
	MspName:       "NAME",
	MspSetName:    "SET_NAME",
	MspReboot:     "REBOOT",
	MspUID:        "UID",

	// Configuration
	MspBatteryConfig:         "BATTERY_CONFIG",
	MspSetBatteryConfig:      "SET_BATTERY_CONFIG",
	MspModeRanges:            "MODE_RANGES",
	MspSetModeRange:          "SET_MODE_RANGE",
	MspFeatureConfig:         "FEATURE_CONFIG",
	MspSetFeatureConfig:      "SET_FEATURE_CONFIG",
	MspBoardAlignmentConfig:  "BOARD_ALIGNMENT_CONFIG",
	MspMixerConfig:           "MIXER_CONFIG",
	MspSetMixerConfig:        "SET_MIXER_CONFIG",
	MspRxConfig:              "RX_CONFIG",
	MspSetRxConfig:           "SET_RX_CONFIG",
	MspRssiConfig:            "RSSI_CONFIG",
	MspCFSerialConfig:        "CF_SERIAL_CONFIG",
	MspSetCFSerialConfig:     "SET_CF_SERIAL_CONFIG",
	MspVoltageMeterConfig:    "VOLTAGE_METER_CONFIG",
	MspSetVoltageMeterConfig: "SET_VOLTAGE_METER_CONFIG",
	MspPidController:         "PID_CONTROLLER",
	MspArmingConfig:          "ARMING_CONFIG",
	MspRxMap:                 "RX_MAP",
	MspDataflashSummary:      "DATAFLASH_SUMMARY",
	MspFailsafeConfig:        "FAILSAFE_CONFIG",
	MspSetFailsafeConfig:     "SET_FAILSAFE_CONFIG",
	MspRxFailConfig:          "RXFAIL_CONFIG",
	MspSetRxFailConfig:       "SET_RXFAIL_CONFIG",
	MspBlackboxConfig:        "BLACKBOX_CONFIG",
	MspSetBlackboxConfig:     "SET_BLACKBOX_CONFIG",
	MspVtxConfig:             "VTX_CONFIG",
	MspAdvancedConfig:        "ADVANCED_CONFIG",
	MspSetAdvancedConfig:     "SET_ADVANCED_CONFIG",
	MspFilterConfig:          "FILTER_CONFIG",
	MspSetFilterConfig:       "SET_FILTER_CONFIG",
	MspPidAdvanced:           "PID_ADVANCED",
	MspSetPidAdvanced:        "SET_PID_ADVANCED",
	MspSensorConfig:          "SENSOR_CONFIG",
	MspSetSensorConfig:       "SET_SENSOR_CONFIG",
	MspServoConfigurations:   "SERVO_CONFIGURATIONS",
	MspMotor3DConfig:         "MOTOR_3D_CONFIG",
	MspRcDeadband:            "RC_DEADBAND",
	MspSensorAlignment:       "SENSOR_ALIGNMENT",
	MspMotorConfig:           "MOTOR_CONFIG",
	MspGPSConfig:             "GPS_CONFIG",
	MspCompassConfig:         "COMPASS_CONFIG",
	MspBeeperConfig:          "BEEPER_CONFIG",
	MspSetBeeperConfig:       "SET_BEEPER_CONFIG",
	MspSetPid:                "SET_PID",
	MspSetRcTuning:           "SET_RC_TUNING",
	MspSetServoConfiguration: "SET_SERVO_CONFIGURATION",
	MspSetRcDeadband:         "SET_RC_DEADBAND",
	MspSetSensorAlignment:    "SET_SENSOR_ALIGNMENT",
	MspSetMotorConfig:        "SET_MOTOR_CONFIG",
	MspModeRangesExtra:       "MODE_RANGES_EXTRA",
	MspAccTrim:               "ACC_TRIM",

	// Telemetry
	MspStatus:        "STATUS",
	MspRawIMU:        "RAW_IMU",
	MspServo:         "SERVO",
	MspMotor:         "MOTOR",
	MspRc:            "RC",
	MspAttitude:      "ATTITUDE",
	MspAltitude:      "ALTITUDE",
	MspAnalog:        "ANALOG",
	MspRcTuning:      "RC_TUNING",
	MspPid:           "PID",
	MspBoxNames:      "BOXNAMES",
	MspPidNames:      "PIDNAMES",
	MspBoxIDs:        "BOXIDS",
	MspVoltageMeters: "VOLTAGE_METERS",
	MspCurrentMeters: "CURRENT_METERS",
	MspBatteryState:  "BATTERY_STATE",
	MspStatusEx:      "STATUS_EX",
	MspDebug:         "DEBUG",

	// Actions
	MspAccCalibration: "ACC_CALIBRATION",
	MspMagCalibration: "MAG_CALIBRATION",
	MspResetConf:      "RESET_CONF",
	MspSetMotor:       "SET_MOTOR",
	MspEepromWrite:    "EEPROM_WRITE",
}

// OpcodeName returns the protocol name of an opcode, or "UNKNOWN"
func OpcodeName(opcode uint8) string {
	if name := opcodeNames[opcode]; name != "" {
		return name
	}
	return "UNKNOWN"
}

// ParseOpcode accepts an opcode name (case-insensitive, with or without the
// MSP_ prefix) or a decimal or 0x-prefixed number.
func ParseOpcode(s string) (uint8, error) {
	if v, err := strconv.ParseUint(s, 0, 8); err == nil {
		return uint8(v), nil
	}
	name := strings.TrimPrefix(strings.ToUpper(s), "MSP_")
	for op, n := range opcodeNames {
		if n != "" && n == name {
			return uint8(op), nil
		}
	}
	return 0, fmt.Errorf("unknown opcode %q", s)
}

// FormatFrame formats a parsed frame into a human-readable line
func FormatFrame(m *InboundMessage) string {
	return FormatFrameAt(time.Now(), m)
}

// FormatFrameAt formats a parsed frame stamped with t
func FormatFrameAt(t time.Time, m *InboundMessage) string {
	result := fmt.Sprintf("[%s] %s %s (%d) len=%d",
		t.Format("15:04:05.000"), m.Direction(), OpcodeName(m.Opcode()), m.Opcode(), m.Len())
	if m.Len() > 0 {
		result += " " + FormatPayload(m.Payload())
	}
	return result
}

// FormatPayload renders bytes as space-separated hex
func FormatPayload(payload []byte) string {
	var b strings.Builder
	for i, v := range payload {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}
