// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"fmt"
	"io"
)

// Encoder writes response frames to a transport.
// The scratch buffers live in the Encoder so that writing a response does
// not allocate.
type Encoder struct {
	head [3]byte
	mid  [2]byte
	sum  [1]byte
}

// ResponseDirection returns the wire direction for a dispatch result:
// '!' for errors, '>' for both OK and unsupported.
func ResponseDirection(r Result) Direction {
	if r == ResultError {
		return DirError
	}
	return DirReply
}

// WriteResponse serializes out to w as four writes: header and direction,
// length and opcode, payload (skipped when empty), checksum.
func (e *Encoder) WriteResponse(w io.Writer, out *OutboundMessage) error {
	payload := out.Payload()
	length := uint8(len(payload))

	e.head = [3]byte{HeaderStart, HeaderM, ResponseDirection(out.Result).Byte()}
	if _, err := w.Write(e.head[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	e.mid = [2]byte{length, out.Opcode}
	if _, err := w.Write(e.mid[:]); err != nil {
		return fmt.Errorf("write length/opcode: %w", err)
	}

	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}

	e.sum[0] = Checksum(length, out.Opcode, payload)
	if _, err := w.Write(e.sum[:]); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// AppendFrame appends a complete frame to dst and returns the extended
// buffer.
func AppendFrame(dst []byte, dir Direction, opcode uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	length := uint8(len(payload))
	dst = append(dst, HeaderStart, HeaderM, dir.Byte(), length, opcode)
	dst = append(dst, payload...)
	dst = append(dst, Checksum(length, opcode, payload))
	return dst, nil
}

// EncodeRequest builds a command frame ('<') for opcode.
func EncodeRequest(opcode uint8, payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, FrameOverhead+len(payload)), DirCommand, opcode, payload)
}

// EncodeResponse builds the frame WriteResponse would send for out.
func EncodeResponse(out *OutboundMessage) []byte {
	frame, _ := AppendFrame(make([]byte, 0, FrameOverhead+out.Len()),
		ResponseDirection(out.Result), out.Opcode, out.Payload())
	return frame
}
