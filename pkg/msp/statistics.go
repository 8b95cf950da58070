// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Stats counts engine and link activity. Counters are updated by the
// goroutine feeding the engine and may be read concurrently, e.g. by a
// metrics exporter.
type Stats struct {
	start atomic.Int64 // unix nanoseconds

	Bytes              atomic.Uint64
	Frames             atomic.Uint64 // frames that passed the checksum
	Dispatched         atomic.Uint64 // command frames dispatched
	RepliesIgnored     atomic.Uint64 // reply frames parsed and dropped
	ChecksumErrors     atomic.Uint64
	Oversized          atomic.Uint64
	SyncDrops          atomic.Uint64 // bad 'M' or direction byte
	Unsupported        atomic.Uint64
	SemanticErrors     atomic.Uint64 // handler answered with the error marker
	ContractViolations atomic.Uint64 // codec overrun or overflow, rolled back
	TransportErrors    atomic.Uint64
}

// NewStats creates a zeroed statistics tracker
func NewStats() *Stats {
	s := &Stats{}
	s.start.Store(time.Now().UnixNano())
	return s
}

// RecordFramingError counts a framing error reported by the Parser
func (s *Stats) RecordFramingError(err error) {
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		s.ChecksumErrors.Add(1)
	case errors.Is(err, ErrFrameTooLarge):
		s.Oversized.Add(1)
	case errors.Is(err, ErrSyncLost), errors.Is(err, ErrBadDirection):
		s.SyncDrops.Add(1)
	}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Elapsed time.Duration

	Bytes              uint64
	Frames             uint64
	Dispatched         uint64
	RepliesIgnored     uint64
	ChecksumErrors     uint64
	Oversized          uint64
	SyncDrops          uint64
	Unsupported        uint64
	SemanticErrors     uint64
	ContractViolations uint64
	TransportErrors    uint64
}

// Snapshot copies the current counter values
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Elapsed:            time.Since(time.Unix(0, s.start.Load())),
		Bytes:              s.Bytes.Load(),
		Frames:             s.Frames.Load(),
		Dispatched:         s.Dispatched.Load(),
		RepliesIgnored:     s.RepliesIgnored.Load(),
		ChecksumErrors:     s.ChecksumErrors.Load(),
		Oversized:          s.Oversized.Load(),
		SyncDrops:          s.SyncDrops.Load(),
		Unsupported:        s.Unsupported.Load(),
		SemanticErrors:     s.SemanticErrors.Load(),
		ContractViolations: s.ContractViolations.Load(),
		TransportErrors:    s.TransportErrors.Load(),
	}
}

// Reset zeroes all counters and restarts the clock
func (s *Stats) Reset() {
	s.start.Store(time.Now().UnixNano())
	for _, c := range []*atomic.Uint64{
		&s.Bytes, &s.Frames, &s.Dispatched, &s.RepliesIgnored,
		&s.ChecksumErrors, &s.Oversized, &s.SyncDrops, &s.Unsupported,
		&s.SemanticErrors, &s.ContractViolations, &s.TransportErrors,
	} {
		c.Store(0)
	}
}

// FramingErrors returns the number of dropped frames
func (s StatsSnapshot) FramingErrors() uint64 {
	return s.ChecksumErrors + s.Oversized + s.SyncDrops
}

// FrameRate returns valid frames per second
func (s StatsSnapshot) FrameRate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// String returns a formatted statistics summary
func (s StatsSnapshot) String() string {
	var b strings.Builder
	percent := func(n uint64) float64 {
		total := s.Frames + s.FramingErrors()
		if total == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(total)
	}

	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", s.Elapsed.Seconds())
	fmt.Fprintf(&b, "Bytes:           %8d\n", s.Bytes)
	fmt.Fprintf(&b, "Valid Frames:    %8d (%.1f%%)\n", s.Frames, percent(s.Frames))
	if s.ChecksumErrors > 0 {
		fmt.Fprintf(&b, "Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.Oversized > 0 {
		fmt.Fprintf(&b, "Oversized:       %8d (%.1f%%)\n", s.Oversized, percent(s.Oversized))
	}
	if s.SyncDrops > 0 {
		fmt.Fprintf(&b, "Sync Drops:      %8d (%.1f%%)\n", s.SyncDrops, percent(s.SyncDrops))
	}
	if s.Dispatched > 0 {
		fmt.Fprintf(&b, "Dispatched:      %8d\n", s.Dispatched)
		if s.Unsupported > 0 {
			fmt.Fprintf(&b, "  Unsupported:      %5d\n", s.Unsupported)
		}
		if s.SemanticErrors > 0 {
			fmt.Fprintf(&b, "  Rejected:         %5d\n", s.SemanticErrors)
		}
		if s.ContractViolations > 0 {
			fmt.Fprintf(&b, "  Rolled Back:      %5d\n", s.ContractViolations)
		}
	}
	if s.RepliesIgnored > 0 {
		fmt.Fprintf(&b, "Replies Ignored: %8d\n", s.RepliesIgnored)
	}
	if s.TransportErrors > 0 {
		fmt.Fprintf(&b, "Transport Errors:%8d\n", s.TransportErrors)
	}
	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate())
	b.WriteString("================================\n")
	return b.String()
}
