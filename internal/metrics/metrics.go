// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports the protocol engine counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

const namespace = "gyrostat"

type counter struct {
	subsystem string
	name      string
	help      string
	value     *atomic.Uint64
}

// NewRegistry returns a registry exposing s along with the Go runtime
// collectors.
func NewRegistry(s *msp.Stats) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counters := []counter{
		{"link", "bytes_total", "Bytes read from the transport.", &s.Bytes},
		{"link", "frames_total", "Frames that passed the checksum.", &s.Frames},
		{"link", "checksum_errors_total", "Frames dropped on checksum mismatch.", &s.ChecksumErrors},
		{"link", "oversized_total", "Frames dropped for exceeding the payload capacity.", &s.Oversized},
		{"link", "sync_drops_total", "Frames dropped on a bad header or direction byte.", &s.SyncDrops},
		{"link", "transport_errors_total", "Failed transport reads or writes.", &s.TransportErrors},
		{"engine", "dispatched_total", "Command frames dispatched.", &s.Dispatched},
		{"engine", "replies_ignored_total", "Reply frames received and dropped.", &s.RepliesIgnored},
		{"engine", "unsupported_total", "Commands without a handler.", &s.Unsupported},
		{"engine", "rejected_total", "Commands answered with the error marker.", &s.SemanticErrors},
		{"engine", "rolled_back_total", "Commands rolled back after a payload overrun or overflow.", &s.ContractViolations},
	}
	for _, c := range counters {
		v := c.value
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: c.subsystem,
				Name:      c.name,
				Help:      c.help,
			},
			func() float64 { return float64(v.Load()) },
		))
	}
	return reg
}

// Serve exposes reg on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
