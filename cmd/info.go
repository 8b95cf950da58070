// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/gyrostat/pkg/fc"
	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var infoTimeout int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Identify the flight controller",
	Long: `Query the identity of the flight controller on the connection.

Sends the identification requests a configurator issues on connect
(API_VERSION, FC_VARIANT, FC_VERSION, BOARD_INFO, BUILD_INFO, NAME, UID)
and prints the decoded answers. Requests the firmware does not implement
are reported as unsupported.

Exit codes:
  0 - Flight controller identified
  1 - No reply to API_VERSION
  2 - Connection error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().IntVar(&infoTimeout, "timeout", 2, "Timeout in seconds for each request")
}

// infoQuery is one identification request and its decoder.
type infoQuery struct {
	label  string
	opcode uint8
	decode func(reply *msp.InboundMessage) string
}

var infoQueries = []infoQuery{
	{"API", msp.MspAPIVersion, func(r *msp.InboundMessage) string {
		protocol := r.ReadU8()
		major := r.ReadU8()
		minor := r.ReadU8()
		return fmt.Sprintf("protocol %d, api %d.%d", protocol, major, minor)
	}},
	{"Variant", msp.MspFCVariant, func(r *msp.InboundMessage) string {
		return string(r.Payload())
	}},
	{"Version", msp.MspFCVersion, func(r *msp.InboundMessage) string {
		return fmt.Sprintf("%d.%d.%d", r.ReadU8(), r.ReadU8(), r.ReadU8())
	}},
	{"Board", msp.MspBoardInfo, func(r *msp.InboundMessage) string {
		if r.Len() < 4 {
			return "(short reply)"
		}
		id := string(r.Payload()[:4])
		r.Advance(4)
		rev := r.ReadU16()
		return fmt.Sprintf("%s rev %d", id, rev)
	}},
	{"Build", msp.MspBuildInfo, func(r *msp.InboundMessage) string {
		p := r.Payload()
		if len(p) < 26 {
			return string(p)
		}
		return fmt.Sprintf("%s %s (%s)", p[:11], p[11:19], p[19:26])
	}},
	{"Name", msp.MspName, func(r *msp.InboundMessage) string {
		if r.Len() == 0 {
			return "(unset)"
		}
		return string(r.Payload())
	}},
	{"UID", msp.MspUID, func(r *msp.InboundMessage) string {
		if r.Len() < fc.UIDSize {
			return "(short reply)"
		}
		return strings.ToUpper(fmt.Sprintf("%x", r.Payload()[:fc.UIDSize]))
	}},
}

func runInfo(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	client := msp.NewClient(conn, msp.WithClientLogger(logger))
	defer client.Close()

	fmt.Printf("Gyrostat - Flight Controller Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	for i, q := range infoQueries {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(infoTimeout)*time.Second)
		reply, err := client.Request(ctx, q.opcode, nil)
		cancel()

		var replyErr *msp.ReplyError
		switch {
		case err == nil && reply.Len() == 0 && q.opcode != msp.MspName:
			fmt.Printf("  %-8s (unsupported)\n", q.label+":")
		case err == nil:
			fmt.Printf("  %-8s %s\n", q.label+":", q.decode(reply))
		case errors.As(err, &replyErr):
			fmt.Printf("  %-8s (rejected)\n", q.label+":")
		case errors.Is(err, msp.ErrTimeout) && i > 0:
			fmt.Printf("  %-8s (no reply)\n", q.label+":")
		default:
			fmt.Fprintf(os.Stderr, "\nNo reply from flight controller: %v\n", err)
			os.Exit(1)
		}
	}
	return nil
}
