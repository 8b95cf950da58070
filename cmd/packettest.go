// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var (
	packetTestTimeout int
	packetTestPoll    bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid MSP frame",
	Long: `Wait for a valid MSP frame on the connection until timeout.

This command connects to a serial port, TCP address or WebSocket and waits
for any valid MSP frame. It ignores invalid bytes and waits for a complete
frame that passes the checksum.

A flight controller only speaks when spoken to, so by default an
API_VERSION request is sent once the connection is open. Use --poll=false
to listen passively, e.g. on a link another tool is driving.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().BoolVar(&packetTestPoll, "poll", true, "Send an API_VERSION request after connecting")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Gyrostat - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid MSP frame...\n\n")

	if packetTestPoll {
		req, _ := msp.EncodeRequest(msp.MspAPIVersion, nil)
		if _, err := conn.Write(req); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
	}

	parser := msp.NewMonitorParser()
	buf := make([]byte, 128)

	// Channel for frame reception
	frameChan := make(chan *msp.InboundMessage, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		invalidBytes := 0
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				msg, ferr := parser.Feed(buf[i])
				if ferr != nil {
					invalidBytes++
					continue
				}
				if msg != nil {
					if invalidBytes > 0 {
						fmt.Printf("(skipped %d invalid bytes before sync)\n", invalidBytes)
					}
					frame := *msg
					frameChan <- &frame
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	select {
	case msg := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Opcode: %s (%d)\n", msp.OpcodeName(msg.Opcode()), msg.Opcode())
		fmt.Printf("  Direction: %s\n", msg.Direction())
		fmt.Printf("  Length: %d bytes\n", msg.Len())
		fmt.Printf("  Checksum: 0x%02X\n", msg.Checksum())
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
