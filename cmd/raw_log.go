// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var rawLogErrors bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display MSP frames as they arrive.

Every frame that passes the checksum is printed with timestamp, direction,
opcode name and payload bytes. Commands ('<'), replies ('>') and error
replies ('!') are all shown, so the tool can sniff a link between a
configurator and a flight controller.

Supports serial, TCP and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogErrors, "errors", false, "Also print framing errors")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Gyrostat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	parser := msp.NewMonitorParser()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			msg, ferr := parser.Feed(buf[i])
			if ferr != nil {
				if rawLogErrors {
					fmt.Printf("[ERROR] %v\n", ferr)
				}
				continue
			}
			if msg != nil {
				fmt.Println(msp.FormatFrame(msg))
				parser.Reset()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				logger.Info().Msg("Connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}
