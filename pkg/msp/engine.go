// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"io"

	"github.com/rs/zerolog"
)

// Engine is the responder side of the protocol: it parses command frames
// from the byte stream, dispatches them against the model and writes the
// responses back.
//
// An Engine is not safe for concurrent use. The caller must not touch the
// model while Feed is running.
type Engine struct {
	parser  *Parser
	table   *Table
	model   Model
	w       io.Writer
	enc     Encoder
	out     OutboundMessage
	stats   *Stats
	log     zerolog.Logger
	restart bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTable replaces the default handler table
func WithTable(t *Table) Option {
	return func(e *Engine) { e.table = t }
}

// WithStats makes the engine count into s instead of a private tracker
func WithStats(s *Stats) Option {
	return func(e *Engine) { e.stats = s }
}

// WithLogger sets the engine logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine answering for m on w.
func NewEngine(m Model, w io.Writer, opts ...Option) *Engine {
	e := &Engine{
		parser: NewParser(),
		model:  m,
		w:      w,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.table == nil {
		e.table = DefaultTable()
	}
	if e.stats == nil {
		e.stats = NewStats()
	}
	return e
}

// Stats returns the engine counters
func (e *Engine) Stats() *Stats {
	return e.stats
}

// SetWriter changes the transport responses are written to, e.g. after a
// peer reconnects. Any partial frame is dropped.
func (e *Engine) SetWriter(w io.Writer) {
	e.w = w
	e.parser.Reset()
}

// Feed processes one byte from the transport.
//
// When the byte completes a command frame, the command is dispatched and
// the response written before Feed returns. Feed reports whether the
// engine is inside a frame or has just completed one; false means the
// caller may stop feeding without losing synchronization.
func (e *Engine) Feed(b byte) bool {
	e.stats.Bytes.Add(1)

	msg, err := e.parser.Feed(b)
	if err != nil {
		e.stats.RecordFramingError(err)
		e.log.Trace().Err(err).Msg("Frame dropped")
		return false
	}
	if msg == nil {
		return e.parser.Active()
	}

	e.stats.Frames.Add(1)
	if msg.Direction() == DirCommand {
		e.process(msg)
	} else {
		e.stats.RepliesIgnored.Add(1)
		e.log.Trace().Str("opcode", OpcodeName(msg.Opcode())).Msg("Reply frame ignored")
	}
	e.parser.Reset()
	return true
}

// Write feeds every byte of p, so an Engine can be the destination of
// io.Copy. It never fails.
func (e *Engine) Write(p []byte) (int, error) {
	for _, b := range p {
		e.Feed(b)
	}
	return len(p), nil
}

// ConsumeRestart reports whether a restart was requested since the last
// call and clears the request. It only becomes true once the response to
// the requesting command has been written.
func (e *Engine) ConsumeRestart() bool {
	r := e.restart
	e.restart = false
	return r
}

func (e *Engine) process(msg *InboundMessage) {
	e.out = OutboundMessage{}
	e.stats.Dispatched.Add(1)

	err := e.table.Dispatch(msg, &e.out, e.model)
	switch {
	case err != nil:
		e.stats.ContractViolations.Add(1)
		e.log.Warn().Err(err).
			Str("opcode", OpcodeName(msg.Opcode())).
			Int("len", msg.Len()).
			Msg("Command rolled back")
	case e.out.Result == ResultUnsupported:
		e.stats.Unsupported.Add(1)
	case e.out.Result == ResultError:
		e.stats.SemanticErrors.Add(1)
	}

	level := zerolog.DebugLevel
	if isTelemetryPoll(msg.Opcode()) {
		level = zerolog.TraceLevel
	}
	e.log.WithLevel(level).
		Str("opcode", OpcodeName(msg.Opcode())).
		Uint8("code", msg.Opcode()).
		Int("len", msg.Len()).
		Stringer("result", e.out.Result).
		Int("reply_len", e.out.Len()).
		Msg("Command")

	if err := e.enc.WriteResponse(e.w, &e.out); err != nil {
		e.stats.TransportErrors.Add(1)
		e.log.Error().Err(err).Str("opcode", OpcodeName(msg.Opcode())).Msg("Failed to write response")
	}
	if e.out.RestartRequested() {
		e.restart = true
	}
}

// isTelemetryPoll reports opcodes that ground stations poll continuously.
func isTelemetryPoll(opcode uint8) bool {
	switch opcode {
	case MspStatus, MspStatusEx, MspBoxNames, MspAnalog, MspAttitude,
		MspAltitude, MspRc, MspRawIMU, MspMotor, MspServo,
		MspBatteryState, MspVoltageMeters, MspCurrentMeters:
		return true
	}
	return false
}
