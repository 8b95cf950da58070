// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// TCP connection flags
	tcpAddr string

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "gyrostat",
	Short: "MSP flight controller toolkit",
	Long: `Gyrostat - Tools for the MSP v1 flight controller configuration protocol.

Ground-station commands query, sniff and monitor a flight controller over the
MultiWii Serial Protocol. The serve command runs an emulated flight controller
that answers configurator and OSD tools.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp 127.0.0.1:5760 (SITL)

For WebSocket authentication, the password is read from the GYROSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Diagnostic logging goes to stderr and is controlled by GYROSTAT_LOG_LEVEL
(trace, debug, info, warn, error, off).`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.Configure(logging.ProfileRuntime)
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// TCP connection flags
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "TCP address of a simulator (host:port)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
