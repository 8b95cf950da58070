// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trip time with API_VERSION requests",
	Long: `Send API_VERSION requests to the flight controller and wait for each reply.

API_VERSION is answered by every MSP flight controller and carries no side
effects, which makes it a safe probe for:
  - Transport is established (serial, TCP or WebSocket bridge)
  - HTTP Basic authentication works (WebSocket)
  - The peer is parsing commands and answering them
  - Bidirectional frame flow works

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	client := msp.NewClient(conn, msp.WithClientLogger(logger))
	defer client.Close()

	fmt.Printf("Gyrostat - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	var totalRTT time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(pingTimeout)*time.Second)
		startTime := time.Now()
		reply, err := client.Request(ctx, msp.MspAPIVersion, nil)
		cancel()
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			rtt := time.Since(startTime)
			totalRTT += rtt
			protocol := reply.ReadU8()
			major := reply.ReadU8()
			minor := reply.ReadU8()
			fmt.Printf("reply from FC, protocol=%d api=%d.%d, rtt=%v\n",
				protocol, major, minor, rtt.Round(time.Microsecond))
			successCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d replies received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("average rtt %v\n", (totalRTT / time.Duration(successCount)).Round(time.Microsecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
