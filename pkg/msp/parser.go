// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

// parseState is the position of the parser inside a frame.
type parseState uint8

// Parser states
const (
	stateIdle      parseState = iota
	stateSync1                // '$' seen
	stateSync2                // 'M' seen
	stateDirection            // direction seen, next byte is the length
	stateLength               // length seen, next byte is the opcode
	statePayload              // collecting payload, then the checksum byte
	stateComplete
)

// Parser implements the MSP v1 frame state machine.
//
// It consumes one byte at a time and never buffers more than
// MaxPayloadSize payload bytes. Framing errors drop the frame and return
// the parser to idle; the next '$' starts a new frame.
type Parser struct {
	msg         InboundMessage
	acceptError bool
}

// NewParser creates a parser for the responder side: it accepts command
// ('<') and reply ('>') frames.
func NewParser() *Parser {
	return &Parser{}
}

// NewMonitorParser creates a parser that also accepts error replies ('!'),
// for ground tools reading responses or sniffing a link.
func NewMonitorParser() *Parser {
	return &Parser{acceptError: true}
}

// Reset drops any partial or completed frame and returns to idle
func (p *Parser) Reset() {
	p.msg = InboundMessage{}
}

// Active reports whether the parser is inside a frame or holds a completed
// one that has not been reset yet.
func (p *Parser) Active() bool {
	return p.msg.state != stateIdle
}

// Message returns the frame being assembled. It is only meaningful after
// Feed reported completion and until the next Reset.
func (p *Parser) Message() *InboundMessage {
	return &p.msg
}

// Feed processes a single byte.
// Returns the completed message when b was a valid checksum byte, nil
// otherwise. Returns a framing error when the byte caused the current
// frame to be dropped. Feeding after completion without a Reset starts a
// new frame.
func (p *Parser) Feed(b byte) (*InboundMessage, error) {
	m := &p.msg
	if m.state == stateComplete {
		p.Reset()
	}

	switch m.state {
	case stateIdle:
		if b == HeaderStart {
			m.state = stateSync1
		}

	case stateSync1:
		if b != HeaderM {
			p.Reset()
			return nil, ErrSyncLost
		}
		m.state = stateSync2

	case stateSync2:
		switch {
		case b == DirCommandByte:
			m.dir = DirCommand
		case b == DirReplyByte:
			m.dir = DirReply
		case b == DirErrorByte && p.acceptError:
			m.dir = DirError
		default:
			p.Reset()
			return nil, ErrBadDirection
		}
		m.state = stateDirection

	case stateDirection:
		if int(b) > MaxPayloadSize {
			p.Reset()
			return nil, ErrFrameTooLarge
		}
		m.expected = int(b)
		m.received = 0
		m.read = 0
		m.checksum = b
		m.state = stateLength

	case stateLength:
		m.opcode = b
		m.checksum ^= b
		m.state = statePayload

	case statePayload:
		if m.received < m.expected {
			m.payload[m.received] = b
			m.received++
			m.checksum ^= b
			return nil, nil
		}
		if b != m.checksum {
			p.Reset()
			return nil, ErrChecksumMismatch
		}
		m.state = stateComplete
		return m, nil
	}

	return nil, nil
}
