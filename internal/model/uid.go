// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package model

import (
	"encoding/hex"
	"fmt"

	"github.com/denisbrodbeck/machineid"

	"github.com/Thermoquad/gyrostat/pkg/fc"
)

// uidAppID keys the protected machine id so the raw id never leaves the
// host.
const uidAppID = "gyrostat"

// MachineUID derives the board unique id from the host machine id.
func MachineUID() ([fc.UIDSize]byte, error) {
	var uid [fc.UIDSize]byte
	id, err := machineid.ProtectedID(uidAppID)
	if err != nil {
		return uid, fmt.Errorf("failed to read machine id: %w", err)
	}
	raw, err := hex.DecodeString(id)
	if err != nil {
		return uid, fmt.Errorf("unexpected machine id format: %w", err)
	}
	if len(raw) < fc.UIDSize {
		return uid, fmt.Errorf("machine id too short: %d bytes", len(raw))
	}
	copy(uid[:], raw)
	return uid, nil
}
