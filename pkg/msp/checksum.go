// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

// Checksum computes the frame checksum: XOR of length, opcode and payload.
func Checksum(length, opcode uint8, payload []byte) uint8 {
	return xorFold(length^opcode, payload)
}

// xorFold continues a running checksum over data.
func xorFold(crc uint8, data []byte) uint8 {
	for _, b := range data {
		crc ^= b
	}
	return crc
}
