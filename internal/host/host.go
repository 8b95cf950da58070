// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package host runs the emulated flight controller: one loop goroutine owns
// the model and the protocol engine, and every access to them (incoming
// bytes, simulation ticks, configuration reloads, restarts) happens on that
// goroutine.
package host

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/gyrostat/internal/config"
	"github.com/Thermoquad/gyrostat/internal/logging"
	"github.com/Thermoquad/gyrostat/internal/model"
	"github.com/Thermoquad/gyrostat/pkg/msp"
)

const readBufferSize = 512

// Host drives a model and engine from transport peers.
type Host struct {
	model  *model.Model
	engine *msp.Engine
	log    zerolog.Logger

	simInterval time.Duration
	configPath  string
	config      config.Config
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger
func WithLogger(l zerolog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithSimulation ticks the model simulation every interval
func WithSimulation(interval time.Duration) Option {
	return func(h *Host) { h.simInterval = interval }
}

// WithConfigWatch reloads path when it changes and applies the model name,
// board id and log level. cfg is the configuration currently in effect.
func WithConfigWatch(path string, cfg config.Config) Option {
	return func(h *Host) {
		h.configPath = path
		h.config = cfg
	}
}

// New creates a host for m answering through e. The engine's writer is
// replaced by each peer in turn.
func New(m *model.Model, e *msp.Engine, opts ...Option) *Host {
	h := &Host{
		model:  m,
		engine: e,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// session is one connected peer.
type session struct {
	conn io.ReadWriteCloser
	data chan []byte
	stop chan struct{}
	done chan struct{}
	err  error // valid once done is closed
}

func newSession(conn io.ReadWriteCloser) *session {
	s := &session{
		conn: conn,
		data: make(chan []byte),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *session) read() {
	defer close(s.done)
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.data <- chunk:
			case <-s.stop:
				return
			}
		}
		if err != nil {
			s.err = err
			return
		}
	}
}

// close stops the reader and waits for it
func (s *session) close() {
	close(s.stop)
	s.conn.Close()
	<-s.done
}

// Run serves peers received on peers, one at a time: a new peer replaces
// the current one. Run returns when ctx is cancelled, or once peers is
// closed and the last peer has disconnected; in the latter case the read
// error that ended that peer is returned, with io.EOF reported as nil.
func (h *Host) Run(ctx context.Context, peers <-chan io.ReadWriteCloser) error {
	var (
		cur     *session
		lastErr error
		data    <-chan []byte
		gone    <-chan struct{}
		tick    <-chan time.Time
		events  <-chan fsnotify.Event
		werrs   <-chan error
	)

	detach := func() {
		if cur == nil {
			return
		}
		cur.close()
		cur, data, gone = nil, nil, nil
		h.engine.SetWriter(io.Discard)
	}
	defer detach()

	if h.simInterval > 0 {
		ticker := time.NewTicker(h.simInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	if h.configPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(h.configPath)); err != nil {
			return err
		}
		events, werrs = watcher.Events, watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case conn, ok := <-peers:
			if !ok {
				peers = nil
				if cur == nil {
					return lastErr
				}
				continue
			}
			if cur != nil {
				h.log.Info().Msg("New peer replaces current one")
				detach()
			}
			cur = newSession(conn)
			data, gone = cur.data, cur.done
			h.engine.SetWriter(conn)
			h.log.Info().Msg("Peer connected")

		case chunk := <-data:
			h.feed(chunk)

		case <-gone:
			err := cur.err
			detach()
			if errors.Is(err, io.EOF) {
				err = nil
			}
			if err != nil {
				h.engine.Stats().TransportErrors.Add(1)
			}
			lastErr = err
			h.log.Info().Err(err).Msg("Peer disconnected")
			if peers == nil {
				return lastErr
			}

		case <-tick:
			h.model.Tick(h.simInterval)

		case ev := <-events:
			if filepath.Clean(ev.Name) != filepath.Clean(h.configPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.reloadConfig()
			}

		case err := <-werrs:
			h.log.Warn().Err(err).Msg("Config watch error")
		}
	}
}

// feed runs the engine over chunk. A restart requested by a command is
// carried out after its response has been written.
func (h *Host) feed(chunk []byte) {
	for _, b := range chunk {
		h.engine.Feed(b)
		if h.engine.ConsumeRestart() {
			h.log.Info().Msg("Restart requested")
			if err := h.model.Restart(); err != nil {
				h.log.Error().Err(err).Msg("Restart failed to load configuration")
			}
		}
	}
}

func (h *Host) reloadConfig() {
	next, err := config.Load(h.configPath)
	if err != nil {
		h.log.Warn().Err(err).Msg("Config reload failed, keeping current settings")
		return
	}
	prev := h.config
	h.config = next

	if next.Board.ModelName != prev.Board.ModelName {
		h.model.Config().ModelName = next.Board.ModelName
	}
	if next.Board.ID != prev.Board.ID {
		id := h.model.Identity()
		id.BoardID = next.Board.ID
		h.model.SetIdentity(id)
	}
	if next.LogLevel != prev.LogLevel {
		if lvl, ok := logging.ParseLevel(next.LogLevel); ok {
			zerolog.SetGlobalLevel(lvl)
		}
	}
	h.log.Info().Str("path", h.configPath).Msg("Config reloaded")
}
