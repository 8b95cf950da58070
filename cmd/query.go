// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var queryTimeout time.Duration

var queryCmd = &cobra.Command{
	Use:   "query <opcode> [hex payload]",
	Short: "Send one MSP request and print the reply",
	Long: `Send a single MSP request and print the reply frame.

The opcode is a name (STATUS, MSP_STATUS) or a number (101, 0x65). The
optional payload is given as hex, with or without spaces:

  gyrostat query --tcp 127.0.0.1:5760 API_VERSION
  gyrostat query -p /dev/ttyACM0 SET_NAME 62656e6368
  gyrostat query -p /dev/ttyACM0 0x23 "00 00 04 00 06"

Replies are checked against the known telemetry layouts and any anomaly is
printed below the frame. An error reply ('!') makes the command fail.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 2*time.Second, "Time to wait for the reply")
}

func runQuery(cmd *cobra.Command, args []string) error {
	opcode, err := msp.ParseOpcode(args[0])
	if err != nil {
		return err
	}
	var payload []byte
	if len(args) == 2 {
		payload, err = hex.DecodeString(strings.ReplaceAll(args[1], " ", ""))
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	client := msp.NewClient(conn, msp.WithClientLogger(logger))
	defer client.Close()
	logger.Debug().Str("connection", connInfo).Msg("Connected")

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	reply, err := client.Request(ctx, opcode, payload)
	var replyErr *msp.ReplyError
	if err != nil && !errors.As(err, &replyErr) {
		return err
	}

	fmt.Println(msp.FormatFrame(reply))
	for _, anomaly := range msp.ValidateReply(reply) {
		fmt.Printf("  ! %s\n", anomaly.Message)
	}
	return err
}
