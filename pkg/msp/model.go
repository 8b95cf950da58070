// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import "github.com/Thermoquad/gyrostat/pkg/fc"

// Model is the flight controller as seen by command handlers.
//
// Config and State return pointers into the model; handlers read and write
// fields through them directly. Calls happen from a single goroutine; the
// host serializes them against the rest of the firmware.
type Model interface {
	Config() *fc.Config
	State() *fc.State
	Identity() fc.Identity

	IsModeActive(mode fc.Mode) bool
	IsFeatureActive(feature fc.Feature) bool

	// Reload recomputes derived state after a configuration change.
	Reload()
	// Save persists the configuration.
	Save() error
	// Reset restores the factory configuration.
	Reset()
	CalibrateGyro()
	CalibrateMag()
}
