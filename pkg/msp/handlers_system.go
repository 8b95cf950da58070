// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import "github.com/Thermoquad/gyrostat/pkg/fc"

func registerSystemHandlers(t *Table) {
	t.Register(MspAccCalibration, handleAccCalibration)
	t.Register(MspMagCalibration, handleMagCalibration)
	t.Register(MspEepromWrite, handleEepromWrite)
	t.Register(MspResetConf, handleResetConf)
	t.Register(MspReboot, handleReboot)
	t.Register(MspDataflashSummary, handleDataflashSummary)
}

// Calibration and reset requests are ignored while armed; the peer still
// gets an OK reply.

func handleAccCalibration(_ *InboundMessage, _ *OutboundMessage, m Model) {
	if !m.IsModeActive(fc.ModeArmed) {
		m.CalibrateGyro()
	}
}

func handleMagCalibration(_ *InboundMessage, _ *OutboundMessage, m Model) {
	if !m.IsModeActive(fc.ModeArmed) {
		m.CalibrateMag()
	}
}

func handleResetConf(_ *InboundMessage, _ *OutboundMessage, m Model) {
	if !m.IsModeActive(fc.ModeArmed) {
		m.Reset()
	}
}

// handleEepromWrite persists the configuration. Saving while armed or a
// failed save is reported with the error marker.
func handleEepromWrite(_ *InboundMessage, out *OutboundMessage, m Model) {
	if m.IsModeActive(fc.ModeArmed) {
		out.Result = ResultError
		return
	}
	if err := m.Save(); err != nil {
		out.Result = ResultError
	}
}

// handleReboot asks for a restart; the engine signals it after the reply
// has been written.
func handleReboot(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.RequestRestart()
}

func handleDataflashSummary(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(0)  // flags: not ready, not supported
	out.WriteU32(0) // sectors
	out.WriteU32(0) // total size
	out.WriteU32(0) // used size
}
