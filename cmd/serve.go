// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/internal/config"
	"github.com/Thermoquad/gyrostat/internal/host"
	"github.com/Thermoquad/gyrostat/internal/logging"
	"github.com/Thermoquad/gyrostat/internal/metrics"
	"github.com/Thermoquad/gyrostat/internal/model"
	"github.com/Thermoquad/gyrostat/pkg/fc"
	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var (
	serveConfigPath  string
	serveEEPROM      string
	serveListen      string
	serveWSListen    string
	serveMetricsAddr string
	serveNoSim       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an emulated flight controller",
	Long: `Run an emulated MSP flight controller that answers configurator and OSD tools.

The emulator keeps its configuration in an EEPROM image file, simulates
attitude, battery and motor telemetry, and serves one peer at a time over:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  TCP:       --listen 127.0.0.1:5760
  WebSocket: --ws-listen :8080 (binary frames on any path)

A new TCP or WebSocket peer replaces the current one. Settings can also be
given in a YAML or TOML file with --config; the board id, model name and
log level are re-applied when the file changes.

Prometheus metrics for the protocol engine are served on --metrics-addr.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	serveCmd.Flags().StringVar(&serveEEPROM, "eeprom", "", "EEPROM image file")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "TCP listen address (empty string disables)")
	serveCmd.Flags().StringVar(&serveWSListen, "ws-listen", "", "WebSocket listen address")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus metrics listen address")
	serveCmd.Flags().BoolVar(&serveNoSim, "no-sim", false, "Disable the telemetry simulation")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Configurators run from file:// and chrome-extension:// origins
		return true
	},
}

// serveConfig merges the configuration file with the command line flags.
func serveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if serveConfigPath != "" {
		var err error
		cfg, err = config.Load(serveConfigPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("eeprom") {
		cfg.EEPROM = serveEEPROM
	}
	if flags.Changed("listen") {
		cfg.Transport.TCPListen = serveListen
	}
	if flags.Changed("ws-listen") {
		cfg.Transport.WSListen = serveWSListen
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = serveMetricsAddr
	}
	if serveNoSim {
		cfg.Sim.Enabled = false
	}
	if portName != "" {
		cfg.Transport.SerialPort = portName
		cfg.Transport.Baud = baudRate
	}
	return cfg, config.Validate(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	if os.Getenv(logging.EnvLogLevel) == "" {
		if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	m, err := newServeModel(cfg)
	if err != nil {
		return err
	}

	stats := msp.NewStats()
	engine := msp.NewEngine(m, io.Discard,
		msp.WithStats(stats),
		msp.WithLogger(logger.With().Str("component", "engine").Logger()),
	)

	opts := []host.Option{host.WithLogger(logger.With().Str("component", "host").Logger())}
	if cfg.Sim.Enabled {
		opts = append(opts, host.WithSimulation(time.Second/time.Duration(cfg.Sim.RateHz)))
	}
	if serveConfigPath != "" {
		opts = append(opts, host.WithConfigWatch(serveConfigPath, cfg))
	}
	h := host.New(m, engine, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	peers := make(chan io.ReadWriteCloser)
	var wg sync.WaitGroup
	listening := false

	if addr := cfg.Transport.TCPListen; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listening = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			acceptTCP(ctx, ln, peers)
		}()
		logger.Info().Str("addr", ln.Addr().String()).Msg("Listening for TCP peers")
	}

	if addr := cfg.Transport.WSListen; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listening = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveWebSocket(ctx, ln, peers)
		}()
		logger.Info().Str("addr", ln.Addr().String()).Msg("Listening for WebSocket peers")
	}

	if addr := cfg.Metrics.Addr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log := logger.With().Str("component", "metrics").Logger()
			if err := metrics.Serve(ctx, addr, metrics.NewRegistry(stats), log); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	if cfg.Transport.SerialPort != "" {
		conn, err := OpenSerialConnection(cfg.Transport.SerialPort, cfg.Transport.Baud)
		if err != nil {
			return err
		}
		logger.Info().Str("port", cfg.Transport.SerialPort).Int("baud", cfg.Transport.Baud).Msg("Serial port open")
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case peers <- conn:
			case <-ctx.Done():
				conn.Close()
			}
			// A lone serial port is the only peer there will ever be
			if !listening {
				close(peers)
			}
		}()
	}

	fmt.Printf("Gyrostat - Emulated Flight Controller\n")
	fmt.Printf("Board: %s  Name: %q  EEPROM: %s\n", m.Identity().BoardID, m.Config().ModelName, cfg.EEPROM)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err = h.Run(ctx, peers)
	stop()
	wg.Wait()

	fmt.Println()
	fmt.Print(stats.Snapshot().String())
	return err
}

func newServeModel(cfg config.Config) (*model.Model, error) {
	store, err := model.NewFileStore(cfg.EEPROM)
	if err != nil {
		return nil, err
	}

	uid, err := model.MachineUID()
	if err != nil {
		logger.Warn().Err(err).Msg("No machine id, reporting a zero UID")
	}

	id := fc.DefaultIdentity()
	id.BoardID = cfg.Board.ID

	m := model.New(
		model.WithStore(store),
		model.WithIdentity(id),
		model.WithUID(uid),
		model.WithLogger(logger.With().Str("component", "model").Logger()),
	)
	if err := m.Load(); err != nil {
		return nil, err
	}
	if m.Config().ModelName == "" {
		m.Config().ModelName = cfg.Board.ModelName
	}
	return m, nil
}

// acceptTCP hands every accepted connection to the host until ctx is
// cancelled.
func acceptTCP(ctx context.Context, ln net.Listener, peers chan<- io.ReadWriteCloser) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Msg("Accept failed")
			}
			return
		}
		logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("TCP peer connected")
		select {
		case peers <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// serveWebSocket upgrades every request on ln and hands the connection to
// the host until ctx is cancelled.
func serveWebSocket(ctx context.Context, ln net.Listener, peers chan<- io.ReadWriteCloser) {
	srv := &http.Server{
		Handler:           websocketHandler(ctx, peers),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("WebSocket server failed")
	}
}

func websocketHandler(ctx context.Context, peers chan<- io.ReadWriteCloser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
			return
		}
		logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket peer connected")
		select {
		case peers <- &WebSocketConnection{conn: ws}:
		case <-ctx.Done():
			ws.Close()
		}
	})
}
