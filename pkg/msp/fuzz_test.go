// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPayload returns a payload biased towards the short lengths that
// exercise the optional trailing groups of versioned commands.
func randomPayload(rng *rand.Rand) []byte {
	var n int
	if rng.Intn(4) == 0 {
		n = rng.Intn(MaxPayloadSize + 1)
	} else {
		n = rng.Intn(48)
	}
	p := make([]byte, n)
	rng.Read(p)
	return p
}

// ============================================================
// Parser Fuzz Tests
// ============================================================

func TestFuzz_ParserRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	dirs := []Direction{DirCommand, DirReply}

	for i := 0; i < rounds; i++ {
		dir := dirs[rng.Intn(len(dirs))]
		opcode := uint8(rng.Intn(256))
		payload := randomPayload(rng)

		// Leading noise must not contain a frame start.
		noise := make([]byte, rng.Intn(8))
		for j := range noise {
			noise[j] = byte(rng.Intn(256))
			if noise[j] == HeaderStart {
				noise[j] = 0
			}
		}

		data := append(noise, frame(t, dir, opcode, payload)...)
		msgs, errs := feedAll(NewParser(), data)
		if len(errs) != 0 || len(msgs) != 1 {
			t.Fatalf("round %d: %d messages, errors %v", i, len(msgs), errs)
		}
		m := msgs[0]
		if m.Direction() != dir || m.Opcode() != opcode || !bytes.Equal(m.Payload(), payload) {
			t.Fatalf("round %d: got %v/%d/% X, want %v/%d/% X",
				i, m.Direction(), m.Opcode(), m.Payload(), dir, opcode, payload)
		}
	}
}

func TestFuzz_ParserRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(512))
		rng.Read(data)
		// Sprinkle frame starts so the parser leaves idle often.
		for j := 0; j+1 < len(data); j += 1 + rng.Intn(16) {
			data[j], data[j+1] = HeaderStart, HeaderM
		}

		p := NewParser()
		msgs, _ := feedAll(p, data)
		for _, m := range msgs {
			if m.Len() > MaxPayloadSize {
				t.Fatalf("round %d: message of %d bytes accepted", i, m.Len())
			}
			if Checksum(uint8(m.Len()), m.Opcode(), m.Payload()) != m.Checksum() {
				t.Fatalf("round %d: message with bad checksum accepted", i)
			}
		}
	}
}

// ============================================================
// Engine Fuzz Tests
// ============================================================

func TestFuzz_EngineRandomStream(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	e := NewEngine(newFakeModel(), io.Discard)

	for i := 0; i < rounds; i++ {
		var data []byte
		switch rng.Intn(3) {
		case 0:
			data = make([]byte, rng.Intn(256))
			rng.Read(data)
		case 1:
			data = frame(t, DirCommand, uint8(rng.Intn(256)), randomPayload(rng))
		case 2:
			data = frame(t, DirReply, uint8(rng.Intn(256)), randomPayload(rng))
			if rng.Intn(2) == 0 {
				data[rng.Intn(len(data))] ^= 0xFF
			}
		}
		e.Write(data)
		e.ConsumeRestart()
	}

	s := e.Stats().Snapshot()
	if s.Frames != s.Dispatched+s.RepliesIgnored {
		t.Errorf("Frames %d != Dispatched %d + RepliesIgnored %d", s.Frames, s.Dispatched, s.RepliesIgnored)
	}
	if s.Bytes == 0 || s.Frames == 0 {
		t.Errorf("nothing processed: %+v", s)
	}
}

// ============================================================
// Dispatcher Fuzz Tests
// ============================================================

func TestFuzz_DispatchRollsBack(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	table := DefaultTable()

	var opcodes []uint8
	for op := 0; op < 256; op++ {
		if table.Supported(uint8(op)) {
			opcodes = append(opcodes, uint8(op))
		}
	}

	violations := 0
	for i := 0; i < rounds; i++ {
		m := newFakeModel()
		if rng.Intn(2) == 0 {
			m.arm()
		}
		opcode := opcodes[rng.Intn(len(opcodes))]
		payload := randomPayload(rng)

		beforeCfg := m.cfg
		beforeState := m.state
		reloads := m.reloads

		out := &OutboundMessage{}
		err := table.Dispatch(command(t, opcode, payload), out, m)
		if out.Opcode != opcode {
			t.Fatalf("round %d: response opcode %d, want %d", i, out.Opcode, opcode)
		}
		if out.Len() > MaxPayloadSize {
			t.Fatalf("round %d: %s response of %d bytes", i, OpcodeName(opcode), out.Len())
		}
		if err == nil {
			continue
		}

		violations++
		if m.cfg != beforeCfg {
			t.Fatalf("round %d: %s (% X) left config modified after %v", i, OpcodeName(opcode), payload, err)
		}
		if m.state != beforeState {
			t.Fatalf("round %d: %s (% X) left state modified after %v", i, OpcodeName(opcode), payload, err)
		}
		if m.reloads <= reloads {
			t.Fatalf("round %d: no reload after rollback", i)
		}
		if out.Result != ResultError || out.Len() != 0 || out.RestartRequested() {
			t.Fatalf("round %d: violation answered with %v, %d bytes", i, out.Result, out.Len())
		}
	}
	t.Logf("%d of %d commands rolled back", violations, rounds)
}
