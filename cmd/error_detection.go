// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and anomalous replies",
	Long: `Track framing errors, rejected commands and anomalous reply values with statistics.

This command sniffs the link passively and detects:
  - Checksum errors, oversized frames and lost synchronization
  - Error replies ('!') from the flight controller
  - Replies shorter than their documented layout
  - Anomalous telemetry values (attitude out of range, bad RC pulses)
  - Statistics and trends (frame rate, error percentages)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

// printFramingError prints a framing error in highlighted format
func printFramingError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mFRAMING ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(msg *msp.InboundMessage, errs []msp.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")
	name := msp.OpcodeName(msg.Opcode())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (%d)\n", timestamp, name, msg.Opcode())
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range errs {
		switch err.Type {
		case msp.AnomalyErrorReply:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case msp.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if n, ok := err.Details["len"].(int); ok {
				fmt.Printf("    Length: received=%d\n", n)
			}

		case msp.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  Payload: %s\n", msp.FormatPayload(msg.Payload()))
	fmt.Printf("  >>> REPLY REJECTED <<<\n\n")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Gyrostat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	parser := msp.NewMonitorParser()
	stats := msp.NewStats()

	// Sync tracking - ignore framing errors until first valid frame
	synchronized := false
	invalidBytesBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking reads
	readBuf := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readBuf <- data
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case data := <-readBuf:
			for _, b := range data {
				stats.Bytes.Add(1)
				msg, ferr := parser.Feed(b)

				if ferr != nil {
					if synchronized {
						stats.RecordFramingError(ferr)
						printFramingError(ferr)
					} else {
						invalidBytesBeforeSync++
					}
					continue
				}
				if msg == nil {
					continue
				}

				if !synchronized {
					synchronized = true
					if invalidBytesBeforeSync > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", invalidBytesBeforeSync)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}

				stats.Frames.Add(1)
				if msg.Direction() == msp.DirCommand {
					stats.Dispatched.Add(1)
					if showAll {
						fmt.Println(msp.FormatFrame(msg))
					}
					parser.Reset()
					continue
				}

				validationErrors := msp.ValidateReply(msg)
				if msg.Direction() == msp.DirError {
					stats.SemanticErrors.Add(1)
				}
				if len(validationErrors) > 0 {
					printValidationErrors(msg, validationErrors)
				} else if showAll {
					fmt.Println(msp.FormatFrame(msg))
				}
				parser.Reset()
			}

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.Snapshot().String())
			if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.Snapshot().String())
			fmt.Println()
		}
	}
}
