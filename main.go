// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Gyrostat - MSP flight controller toolkit
//
// Ground-station tools and an emulated flight controller for the
// MultiWii Serial Protocol (MSP v1).

package main

import (
	"os"

	"github.com/Thermoquad/gyrostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
