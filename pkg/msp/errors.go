// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"errors"
	"fmt"
)

// Framing errors reported by the Parser. The parser has already returned to
// idle when one of these is reported; nothing is sent to the peer.
var (
	ErrSyncLost         = errors.New("msp: sync lost")
	ErrBadDirection     = errors.New("msp: invalid direction byte")
	ErrFrameTooLarge    = errors.New("msp: frame length exceeds capacity")
	ErrChecksumMismatch = errors.New("msp: checksum mismatch")
)

var (
	// ErrReadOverrun is recorded when a handler reads past the received payload.
	ErrReadOverrun = errors.New("msp: read past end of payload")
	// ErrWriteOverflow is recorded when a handler writes past payload capacity.
	ErrWriteOverflow = errors.New("msp: write past payload capacity")
	// ErrPayloadTooLarge is returned when building a frame over MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("msp: payload too large")
	// ErrTimeout is returned by the client when no reply arrives in time.
	ErrTimeout = errors.New("msp: timed out waiting for reply")
)

// ReplyError is returned by the client when the peer answers with the
// error marker ('!').
type ReplyError struct {
	Opcode  uint8
	Payload []byte
}

// Error implements the error interface
func (e *ReplyError) Error() string {
	return fmt.Sprintf("msp: %s (%d) rejected by peer", OpcodeName(e.Opcode), e.Opcode)
}
