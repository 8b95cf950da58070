// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

// HandlerFunc handles one opcode. It reads the command payload from in,
// writes the response payload to out and reads or updates the model.
// Setting out.Result to ResultError sends the response with the '!' marker.
type HandlerFunc func(in *InboundMessage, out *OutboundMessage, m Model)

// Table maps opcodes to handlers. A nil entry is an unsupported opcode.
// Tables are built once and only read while dispatching.
type Table [256]HandlerFunc

// NewTable returns an empty handler table.
func NewTable() *Table {
	return &Table{}
}

// DefaultTable returns a table with every handler of this package
// registered.
func DefaultTable() *Table {
	t := NewTable()
	registerInfoHandlers(t)
	registerTelemetryHandlers(t)
	registerConfigHandlers(t)
	registerRxHandlers(t)
	registerTuningHandlers(t)
	registerOutputHandlers(t)
	registerSystemHandlers(t)
	return t
}

// Register binds h to opcode, replacing any previous handler.
func (t *Table) Register(opcode uint8, h HandlerFunc) {
	t[opcode] = h
}

// Lookup returns the handler of opcode, or nil.
func (t *Table) Lookup(opcode uint8) HandlerFunc {
	return t[opcode]
}

// Supported reports whether opcode has a handler.
func (t *Table) Supported(opcode uint8) bool {
	return t[opcode] != nil
}

// Dispatch runs the handler for in and fills out.
//
// out.Opcode is set to the command opcode and out.Result defaults to
// ResultOK. Without a handler the result is ResultUnsupported with an
// empty payload.
//
// When the handler reads past the command payload or writes past the
// response capacity, the model configuration and state are restored to
// their values before the call, Reload is run, and the response becomes
// an empty ResultError. The codec error is returned.
func (t *Table) Dispatch(in *InboundMessage, out *OutboundMessage, m Model) error {
	out.Opcode = in.Opcode()
	out.Result = ResultOK

	h := t[in.Opcode()]
	if h == nil {
		out.Result = ResultUnsupported
		out.discard()
		return nil
	}

	cfg := m.Config()
	st := m.State()
	savedCfg := *cfg
	savedState := *st

	h(in, out, m)

	err := in.Err()
	if err == nil {
		err = out.Err()
	}
	if err != nil {
		*cfg = savedCfg
		*st = savedState
		m.Reload()
		out.Result = ResultError
		out.restart = false
		out.discard()
		return err
	}
	return nil
}
