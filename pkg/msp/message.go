// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"encoding/binary"
	"fmt"
)

// Direction tells whether a frame is a command or a reply.
type Direction uint8

// Frame directions
const (
	DirCommand Direction = iota // '<' peer -> flight controller
	DirReply                    // '>' flight controller -> peer
	DirError                    // '!' flight controller -> peer, handler rejected the command
)

// Byte returns the wire marker of the direction
func (d Direction) Byte() byte {
	switch d {
	case DirReply:
		return DirReplyByte
	case DirError:
		return DirErrorByte
	default:
		return DirCommandByte
	}
}

// String returns the wire marker as a string
func (d Direction) String() string {
	return string(rune(d.Byte()))
}

// InboundMessage is a frame assembled by the Parser.
//
// The Read methods form a cursor over the received payload. Reading past
// the received bytes never touches memory outside the payload: the first
// violation is recorded, Err reports it, and every later read returns zero.
type InboundMessage struct {
	state    parseState
	dir      Direction
	opcode   uint8
	expected int
	received int
	read     int
	checksum uint8
	payload  [MaxPayloadSize]byte
	err      error
}

// NewInboundMessage builds a complete message, as if it had been parsed
// from the wire.
func NewInboundMessage(dir Direction, opcode uint8, payload []byte) (*InboundMessage, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	m := &InboundMessage{
		state:    stateComplete,
		dir:      dir,
		opcode:   opcode,
		expected: len(payload),
		received: len(payload),
	}
	copy(m.payload[:], payload)
	m.checksum = Checksum(uint8(len(payload)), opcode, payload)
	return m, nil
}

// Direction returns the frame direction
func (m *InboundMessage) Direction() Direction {
	return m.dir
}

// Opcode returns the frame opcode
func (m *InboundMessage) Opcode() uint8 {
	return m.opcode
}

// Len returns the number of payload bytes received
func (m *InboundMessage) Len() int {
	return m.received
}

// Payload returns the received payload. The slice aliases the message.
func (m *InboundMessage) Payload() []byte {
	return m.payload[:m.received]
}

// Checksum returns the checksum accumulated over the frame
func (m *InboundMessage) Checksum() uint8 {
	return m.checksum
}

// Complete reports whether the message passed checksum validation
func (m *InboundMessage) Complete() bool {
	return m.state == stateComplete
}

// Remaining returns the number of unread payload bytes
func (m *InboundMessage) Remaining() int {
	return m.received - m.read
}

// Err returns the first cursor violation, if any
func (m *InboundMessage) Err() error {
	return m.err
}

// Rewind moves the read cursor back to the start of the payload and clears
// any recorded violation.
func (m *InboundMessage) Rewind() {
	m.read = 0
	m.err = nil
}

// ReadU8 consumes one byte
func (m *InboundMessage) ReadU8() uint8 {
	b := m.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadU16 consumes a little-endian uint16
func (m *InboundMessage) ReadU16() uint16 {
	b := m.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadU32 consumes a little-endian uint32
func (m *InboundMessage) ReadU32() uint32 {
	b := m.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Advance skips n bytes without interpreting them
func (m *InboundMessage) Advance(n int) {
	m.take(n)
}

func (m *InboundMessage) take(n int) []byte {
	if m.err != nil {
		return nil
	}
	if n < 0 || n > m.received-m.read {
		m.err = fmt.Errorf("%w: %s needs %d bytes at offset %d, %d received",
			ErrReadOverrun, OpcodeName(m.opcode), n, m.read, m.received)
		return nil
	}
	b := m.payload[m.read : m.read+n]
	m.read += n
	return b
}

// Result is the outcome of a dispatch.
type Result int8

// Dispatch results
const (
	ResultUnsupported Result = 0
	ResultOK          Result = 1
	ResultError       Result = -1
)

// String returns a short name for the result
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	case ResultUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("result(%d)", int8(r))
	}
}

// OutboundMessage is the response built by one handler.
//
// The Write methods append little-endian fields. A write that does not fit
// in the remaining capacity is rejected as a whole and recorded; later
// writes are ignored.
type OutboundMessage struct {
	Opcode uint8
	Result Result

	length  int
	payload [MaxPayloadSize]byte
	restart bool
	err     error
}

// Len returns the number of payload bytes written
func (m *OutboundMessage) Len() int {
	return m.length
}

// Payload returns the written payload. The slice aliases the message.
func (m *OutboundMessage) Payload() []byte {
	return m.payload[:m.length]
}

// Err returns the first write violation, if any
func (m *OutboundMessage) Err() error {
	return m.err
}

// RequestRestart asks the engine to signal a restart once this response
// has been written to the transport.
func (m *OutboundMessage) RequestRestart() {
	m.restart = true
}

// RestartRequested reports whether the handler asked for a restart
func (m *OutboundMessage) RestartRequested() bool {
	return m.restart
}

// WriteU8 appends one byte
func (m *OutboundMessage) WriteU8(v uint8) {
	if b := m.reserve(1); b != nil {
		b[0] = v
	}
}

// WriteU16 appends a little-endian uint16
func (m *OutboundMessage) WriteU16(v uint16) {
	if b := m.reserve(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// WriteU32 appends a little-endian uint32
func (m *OutboundMessage) WriteU32(v uint32) {
	if b := m.reserve(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// WriteBytes appends exactly n bytes from data, zero-padding when data is
// shorter. Used for fixed-width identifiers.
func (m *OutboundMessage) WriteBytes(data []byte, n int) {
	if b := m.reserve(n); b != nil {
		k := copy(b, data)
		clear(b[k:])
	}
}

// WriteText appends the bytes of s with no length prefix or terminator;
// the frame length delimits it.
func (m *OutboundMessage) WriteText(s string) {
	if b := m.reserve(len(s)); b != nil {
		copy(b, s)
	}
}

// discard drops the payload, keeping opcode and result.
func (m *OutboundMessage) discard() {
	m.length = 0
}

func (m *OutboundMessage) reserve(n int) []byte {
	if m.err != nil {
		return nil
	}
	if n < 0 || n > MaxPayloadSize-m.length {
		m.err = fmt.Errorf("%w: %s writes %d bytes at offset %d (capacity %d)",
			ErrWriteOverflow, OpcodeName(m.Opcode), n, m.length, MaxPayloadSize)
		return nil
	}
	b := m.payload[m.length : m.length+n]
	m.length += n
	return b
}
