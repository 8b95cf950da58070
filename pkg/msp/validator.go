// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"encoding/binary"
	"fmt"
)

// AnomalyType represents different kinds of reply anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyInvalidValue
	AnomalyErrorReply
)

// ValidationError represents a reply validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]any
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Reply limits. Minimum lengths are those of the oldest firmware accepted.
const (
	minStatusLen    = 11
	attitudeLen     = 6
	minAnalogLen    = 7
	apiVersionLen   = 3
	pulseMinUs      = 750
	pulseMaxUs      = 2250
	motorMaxUs      = 2500
	maxRollDecideg  = 1800
	maxPitchDecideg = 900
)

// ValidateReply checks a reply frame against the layout of common
// telemetry replies. Returns a slice of validation errors (empty if the
// reply looks sane). Unknown opcodes are not checked.
func ValidateReply(m *InboundMessage) []ValidationError {
	errors := []ValidationError{}
	if m.Direction() == DirError {
		return append(errors, ValidationError{
			Type:    AnomalyErrorReply,
			Message: fmt.Sprintf("%s rejected by flight controller", OpcodeName(m.Opcode())),
		})
	}

	p := m.Payload()
	switch m.Opcode() {
	case MspAPIVersion:
		errors = append(errors, checkMinLen(m, apiVersionLen)...)
	case MspStatus, MspStatusEx:
		errors = append(errors, checkMinLen(m, minStatusLen)...)
	case MspAnalog:
		errors = append(errors, checkMinLen(m, minAnalogLen)...)
	case MspAttitude:
		errors = append(errors, validateAttitude(m, p)...)
	case MspRc:
		errors = append(errors, validatePulses(m, p, pulseMinUs, pulseMaxUs)...)
	case MspMotor:
		errors = append(errors, validatePulses(m, p, 0, motorMaxUs)...)
	case MspBoxNames, MspPidNames:
		if len(p) > 0 && p[len(p)-1] != ';' {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("%s list is not ';'-terminated", OpcodeName(m.Opcode())),
			})
		}
	}
	return errors
}

func checkMinLen(m *InboundMessage, n int) []ValidationError {
	if m.Len() >= n {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyLengthMismatch,
		Message: fmt.Sprintf("%s reply too short: %d bytes (need %d)", OpcodeName(m.Opcode()), m.Len(), n),
		Details: map[string]any{"len": m.Len(), "min": n},
	}}
}

func validateAttitude(m *InboundMessage, p []byte) []ValidationError {
	if m.Len() != attitudeLen {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("ATTITUDE reply has %d bytes (expected %d)", m.Len(), attitudeLen),
			Details: map[string]any{"len": m.Len()},
		}}
	}

	var errors []ValidationError
	roll := int16(binary.LittleEndian.Uint16(p[0:2]))
	pitch := int16(binary.LittleEndian.Uint16(p[2:4]))
	if roll < -maxRollDecideg || roll > maxRollDecideg {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("roll out of range: %.1f°", float64(roll)/10),
			Details: map[string]any{"roll": roll},
		})
	}
	if pitch < -maxPitchDecideg || pitch > maxPitchDecideg {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("pitch out of range: %.1f°", float64(pitch)/10),
			Details: map[string]any{"pitch": pitch},
		})
	}
	return errors
}

func validatePulses(m *InboundMessage, p []byte, lo, hi uint16) []ValidationError {
	if len(p)%2 != 0 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s reply has odd length %d", OpcodeName(m.Opcode()), len(p)),
			Details: map[string]any{"len": len(p)},
		}}
	}

	var errors []ValidationError
	for i := 0; i+1 < len(p); i += 2 {
		us := binary.LittleEndian.Uint16(p[i:])
		if us < lo || us > hi {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("%s channel %d out of range: %d µs", OpcodeName(m.Opcode()), i/2, us),
				Details: map[string]any{"channel": i / 2, "value": us},
			})
		}
	}
	return errors
}
