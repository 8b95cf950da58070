// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/fc"
)

// funcWriter calls fn for every write.
type funcWriter func(p []byte) (int, error)

func (f funcWriter) Write(p []byte) (int, error) {
	return f(p)
}

// ============================================================
// Engine Tests
// ============================================================

func TestEngine_FeedReportsActivity(t *testing.T) {
	e := NewEngine(newFakeModel(), io.Discard)
	if e.Feed('x') {
		t.Error("noise should not make the engine active")
	}

	f := frame(t, DirCommand, MspStatus, nil)
	for i, b := range f {
		active := e.Feed(b)
		if !active {
			t.Errorf("byte %d: engine not active inside a frame", i)
		}
	}
	if e.Feed('y') {
		t.Error("engine active after the frame completed")
	}
}

func TestEngine_ReplyFramesIgnored(t *testing.T) {
	var wire bytes.Buffer
	m := newFakeModel()
	e := NewEngine(m, &wire)
	e.Write(frame(t, DirReply, MspSetName, []byte("nope")))

	if wire.Len() != 0 {
		t.Errorf("reply frame was answered: % X", wire.Bytes())
	}
	if m.cfg.ModelName != "" {
		t.Error("reply frame was dispatched")
	}
	s := e.Stats().Snapshot()
	if s.Frames != 1 || s.RepliesIgnored != 1 || s.Dispatched != 0 {
		t.Errorf("stats: %+v", s)
	}
}

func TestEngine_ResponsesInOrder(t *testing.T) {
	var wire bytes.Buffer
	e := NewEngine(newFakeModel(), &wire)
	var in []byte
	in = append(in, frame(t, DirCommand, MspAPIVersion, nil)...)
	in = append(in, 0x00, 0x13) // noise between frames
	in = append(in, frame(t, DirCommand, MspFCVariant, nil)...)
	e.Write(in)

	var want []byte
	want = append(want, frame(t, DirReply, MspAPIVersion, []byte{0, 1, 42})...)
	want = append(want, frame(t, DirReply, MspFCVariant, []byte("BTFL"))...)
	if !bytes.Equal(wire.Bytes(), want) {
		t.Errorf("responses = % X, want % X", wire.Bytes(), want)
	}
}

func TestEngine_RestartAfterResponse(t *testing.T) {
	var e *Engine
	var sawRestartDuringWrite bool
	writes := 0
	w := funcWriter(func(p []byte) (int, error) {
		writes++
		if e.restart {
			sawRestartDuringWrite = true
		}
		return len(p), nil
	})
	e = NewEngine(newFakeModel(), w)
	e.Write(frame(t, DirCommand, MspReboot, nil))

	if writes == 0 {
		t.Fatal("no response written")
	}
	if sawRestartDuringWrite {
		t.Error("restart signalled before the response was written")
	}
	if !e.ConsumeRestart() {
		t.Error("restart not signalled")
	}
	if e.ConsumeRestart() {
		t.Error("restart signalled twice")
	}
}

func TestEngine_WriteFailureCounted(t *testing.T) {
	w := funcWriter(func(p []byte) (int, error) {
		return 0, errors.New("link down")
	})
	e := NewEngine(newFakeModel(), w)
	e.Write(frame(t, DirCommand, MspStatus, nil))
	if n := e.Stats().TransportErrors.Load(); n != 1 {
		t.Errorf("TransportErrors = %d, want 1", n)
	}
}

func TestEngine_FourWrites(t *testing.T) {
	var sizes []int
	w := funcWriter(func(p []byte) (int, error) {
		sizes = append(sizes, len(p))
		return len(p), nil
	})
	e := NewEngine(newFakeModel(), w)

	e.Write(frame(t, DirCommand, MspAPIVersion, nil))
	if want := []int{3, 2, 3, 1}; !equalInts(sizes, want) {
		t.Errorf("write sizes = %v, want %v", sizes, want)
	}

	sizes = nil
	e.Write(frame(t, DirCommand, MspEepromWrite, nil))
	if want := []int{3, 2, 1}; !equalInts(sizes, want) {
		t.Errorf("empty payload write sizes = %v, want %v", sizes, want)
	}
}

func TestEngine_StatsCounters(t *testing.T) {
	m := newFakeModel()
	table := DefaultTable()
	table.Register(0xF5, func(_ *InboundMessage, out *OutboundMessage, _ Model) {
		out.Result = ResultError
	})
	e := NewEngine(m, io.Discard, WithTable(table))

	var in []byte
	in = append(in, frame(t, DirCommand, MspStatus, nil)...)
	in = append(in, frame(t, DirCommand, 0xFD, nil)...)
	in = append(in, frame(t, DirCommand, 0xF5, nil)...)
	in = append(in, frame(t, DirCommand, MspSetPid, []byte{1})...)
	in = append(in, '$', 'M', '<', 0x00, MspStatus, 0xFF) // bad checksum
	in = append(in, '$', 'M', '<', 0xF0)                  // oversized
	in = append(in, '$', 'Q')                             // sync lost
	e.Write(in)

	s := e.Stats().Snapshot()
	checks := []struct {
		name string
		got  uint64
		want uint64
	}{
		{"Frames", s.Frames, 4},
		{"Dispatched", s.Dispatched, 4},
		{"Unsupported", s.Unsupported, 1},
		{"SemanticErrors", s.SemanticErrors, 1},
		{"ContractViolations", s.ContractViolations, 1},
		{"ChecksumErrors", s.ChecksumErrors, 1},
		{"Oversized", s.Oversized, 1},
		{"SyncDrops", s.SyncDrops, 1},
		{"Bytes", s.Bytes, uint64(len(in))},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if s.FramingErrors() != 3 {
		t.Errorf("FramingErrors = %d, want 3", s.FramingErrors())
	}
}

func TestEngine_SetWriterDropsPartialFrame(t *testing.T) {
	var first, second bytes.Buffer
	e := NewEngine(newFakeModel(), &first)
	f := frame(t, DirCommand, MspAPIVersion, nil)
	e.Write(f[:3])
	e.SetWriter(&second)
	e.Write(f[3:])
	e.Write(f)

	if first.Len() != 0 {
		t.Error("response went to the old writer")
	}
	if !bytes.Equal(second.Bytes(), frame(t, DirReply, MspAPIVersion, []byte{0, 1, 42})) {
		t.Errorf("second = % X", second.Bytes())
	}
}

func TestEngine_FeedDoesNotAllocate(t *testing.T) {
	e := NewEngine(newFakeModel(), io.Discard)
	status := frame(t, DirCommand, MspStatus, nil)
	setPid := frame(t, DirCommand, MspSetPid, make([]byte, 3*fc.PidItemCount))

	allocs := testing.AllocsPerRun(100, func() {
		for _, b := range status {
			e.Feed(b)
		}
		for _, b := range setPid {
			e.Feed(b)
		}
	})
	if allocs != 0 {
		t.Errorf("Feed allocated %.1f times per round", allocs)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeRequest(t *testing.T) {
	f, err := EncodeRequest(MspSetName, []byte("ab"))
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{'$', 'M', '<', 2, MspSetName, 'a', 'b', 2 ^ MspSetName ^ 'a' ^ 'b'}
	if !bytes.Equal(f, want) {
		t.Errorf("frame = % X, want % X", f, want)
	}

	if _, err := EncodeRequest(MspSetName, make([]byte, MaxPayloadSize+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversized request: err = %v", err)
	}
}

func TestEncodeResponse_MatchesWriteResponse(t *testing.T) {
	out := &OutboundMessage{Opcode: MspStatus, Result: ResultError}
	out.WriteU16(0xBEEF)

	var buf bytes.Buffer
	var enc Encoder
	if err := enc.WriteResponse(&buf, out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), EncodeResponse(out)) {
		t.Errorf("WriteResponse % X != EncodeResponse % X", buf.Bytes(), EncodeResponse(out))
	}
	if buf.Bytes()[2] != '!' {
		t.Errorf("direction = %c, want !", buf.Bytes()[2])
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestOpcodeNames(t *testing.T) {
	seen := map[string]int{}
	for op, name := range opcodeNames {
		if name == "" {
			continue
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("name %s used by opcodes %d and %d", name, prev, op)
		}
		seen[name] = op
	}
	if OpcodeName(MspStatus) != "STATUS" {
		t.Errorf("OpcodeName(STATUS) = %s", OpcodeName(MspStatus))
	}
	if OpcodeName(0xFD) != "UNKNOWN" {
		t.Errorf("OpcodeName(0xFD) = %s", OpcodeName(0xFD))
	}
}

func TestParseOpcode(t *testing.T) {
	tests := []struct {
		in      string
		want    uint8
		wantErr bool
	}{
		{"101", MspStatus, false},
		{"0x65", MspStatus, false},
		{"status", MspStatus, false},
		{"MSP_API_VERSION", MspAPIVersion, false},
		{"msp_set_name", MspSetName, false},
		{"256", 0, true},
		{"NOT_AN_OPCODE", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOpcode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOpcode(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatFrameAt(t *testing.T) {
	m, err := NewInboundMessage(DirReply, MspAPIVersion, []byte{0, 1, 42})
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2025, 1, 1, 12, 30, 45, 123_000_000, time.UTC)
	got := FormatFrameAt(ts, m)
	want := "[12:30:45.123] > API_VERSION (1) len=3 00 01 2A"
	if got != want {
		t.Errorf("FormatFrameAt = %q, want %q", got, want)
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateReply(t *testing.T) {
	reply := func(dir Direction, op uint8, payload []byte) *InboundMessage {
		m, err := NewInboundMessage(dir, op, payload)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}

	tests := []struct {
		name string
		msg  *InboundMessage
		want []AnomalyType
	}{
		{"good api version", reply(DirReply, MspAPIVersion, []byte{0, 1, 42}), nil},
		{"short api version", reply(DirReply, MspAPIVersion, []byte{0}), []AnomalyType{AnomalyLengthMismatch}},
		{"error reply", reply(DirError, MspEepromWrite, nil), []AnomalyType{AnomalyErrorReply}},
		{"attitude length", reply(DirReply, MspAttitude, []byte{0, 0}), []AnomalyType{AnomalyLengthMismatch}},
		{"attitude roll", reply(DirReply, MspAttitude, append(le16(1900), 0, 0, 0, 0)), []AnomalyType{AnomalyInvalidValue}},
		{"rc in range", reply(DirReply, MspRc, append(le16(1500), le16(1000)...)), nil},
		{"rc out of range", reply(DirReply, MspRc, append(le16(1500), le16(3000)...)), []AnomalyType{AnomalyInvalidValue}},
		{"boxnames unterminated", reply(DirReply, MspBoxNames, []byte("ARM;ANGLE")), []AnomalyType{AnomalyInvalidValue}},
		{"unknown opcode", reply(DirReply, 0xFD, []byte{1}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateReply(tt.msg)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d anomalies (%v), want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i].Type != tt.want[i] {
					t.Errorf("anomaly %d = %v, want %v", i, got[i].Type, tt.want[i])
				}
			}
		})
	}
}

func TestValidateReply_LiveTelemetry(t *testing.T) {
	m := newFakeModel()
	m.state.Angle = [3]float32{0.2, -0.1, 2}
	m.state.Battery = fc.Battery{Voltage: 168, Cells: 4}
	for i := range m.state.InputUs {
		m.state.InputUs[i] = 1500
	}
	for _, op := range []uint8{MspAPIVersion, MspStatus, MspStatusEx, MspAnalog, MspAttitude, MspRc, MspMotor, MspBoxNames, MspPidNames} {
		out := dispatch(t, m, op, nil)
		in, err := NewInboundMessage(DirReply, op, out.Payload())
		if err != nil {
			t.Fatal(err)
		}
		if errs := ValidateReply(in); len(errs) != 0 {
			t.Errorf("%s: %v", OpcodeName(op), errs)
		}
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStats_ResetAndString(t *testing.T) {
	s := NewStats()
	s.Frames.Add(10)
	s.RecordFramingError(ErrChecksumMismatch)
	s.RecordFramingError(ErrBadDirection)
	s.RecordFramingError(ErrFrameTooLarge)

	snap := s.Snapshot()
	if snap.ChecksumErrors != 1 || snap.SyncDrops != 1 || snap.Oversized != 1 {
		t.Errorf("framing counters: %+v", snap)
	}
	out := snap.String()
	for _, want := range []string{"Valid Frames:", "Checksum Errors:", "Sync Drops:", "Frame Rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	snap = s.Snapshot()
	if snap.Frames != 0 || snap.FramingErrors() != 0 {
		t.Errorf("after Reset: %+v", snap)
	}
}
