// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

var (
	monitorRate    float64
	monitorTimeout time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI showing live flight controller telemetry",
	Long: `Poll a flight controller and display its telemetry in a terminal UI.

The monitor requests STATUS, ATTITUDE, ANALOG, RC and MOTOR in turn, the way
a configurator does, and shows:
  - Cycle time, CPU load and sensor presence
  - Armed state, active modes and arming blockers
  - Attitude and battery voltage
  - RC input and motor output pulse widths
  - Link statistics and an event log of errors and anomalies

Requests are paced with --rate so a slow serial link is not flooded.

Supports serial, TCP and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Float64Var(&monitorRate, "rate", 50, "Maximum requests per second")
	monitorCmd.Flags().DurationVar(&monitorTimeout, "timeout", time.Second, "Time to wait for each reply")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	stats := msp.NewStats()
	client := msp.NewClient(conn,
		msp.WithRequestRate(rate.Limit(monitorRate), 1),
		msp.WithClientStats(stats),
		msp.WithClientLogger(logger),
	)
	defer client.Close()

	m := initialModel(connInfo, stats)
	p := tea.NewProgram(m)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		poll(ctx, client, p)
	}()

	_, err = p.Run()
	cancel()
	<-polled
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// poll requests telemetry until ctx is cancelled and forwards it to p.
func poll(ctx context.Context, client *msp.Client, p *tea.Program) {
	var modeNames []string
	for ctx.Err() == nil {
		if modeNames == nil {
			reply, err := request(ctx, client, msp.MspBoxNames)
			if err != nil {
				if !sendPollError(ctx, client, p, msp.MspBoxNames, err) {
					return
				}
				continue
			}
			modeNames = strings.Split(strings.TrimSuffix(string(reply.Payload()), ";"), ";")
			p.Send(modeNamesMsg(modeNames))
		}

		t := &telemetryData{timestamp: time.Now()}
		for _, q := range telemetryQueries {
			reply, err := request(ctx, client, q.opcode)
			if err != nil {
				if !sendPollError(ctx, client, p, q.opcode, err) {
					return
				}
				continue
			}
			for _, anomaly := range msp.ValidateReply(reply) {
				p.Send(anomalyMsg{opcode: q.opcode, message: anomaly.Message})
			}
			q.decode(reply, t)
		}
		p.Send(telemetryMsg{data: t})
	}
}

func request(ctx context.Context, client *msp.Client, opcode uint8) (*msp.InboundMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, monitorTimeout)
	defer cancel()
	return client.Request(ctx, opcode, nil)
}

// sendPollError reports err to the UI and tells whether polling should
// continue.
func sendPollError(ctx context.Context, client *msp.Client, p *tea.Program, opcode uint8, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	p.Send(pollErrorMsg{opcode: opcode, err: err})
	select {
	case <-client.Done():
		return false
	default:
	}
	return !errors.Is(err, context.Canceled)
}

// telemetryQuery decodes one polled reply into the snapshot.
type telemetryQuery struct {
	opcode uint8
	decode func(r *msp.InboundMessage, t *telemetryData)
}

var telemetryQueries = []telemetryQuery{
	{msp.MspStatus, func(r *msp.InboundMessage, t *telemetryData) {
		t.cycleTime = r.ReadU16()
		t.i2cErrors = r.ReadU16()
		t.sensors = r.ReadU16()
		t.modeMask = r.ReadU32()
		r.Advance(1) // pid profile
		t.load = r.ReadU16()
		r.Advance(2) // gyro cycle time
		r.Advance(int(r.ReadU8()))
		r.Advance(1) // arming disabled flag count
		t.armingDisabled = r.ReadU32()
		t.hasStatus = r.Err() == nil
	}},
	{msp.MspAttitude, func(r *msp.InboundMessage, t *telemetryData) {
		t.roll = float64(int16(r.ReadU16())) / 10
		t.pitch = float64(int16(r.ReadU16())) / 10
		t.heading = int16(r.ReadU16())
		t.hasAttitude = r.Err() == nil
	}},
	{msp.MspAnalog, func(r *msp.InboundMessage, t *telemetryData) {
		t.voltage = float64(r.ReadU8()) / 10
		t.hasAnalog = r.Err() == nil
	}},
	{msp.MspRc, func(r *msp.InboundMessage, t *telemetryData) {
		t.rc = readPulses(r)
	}},
	{msp.MspMotor, func(r *msp.InboundMessage, t *telemetryData) {
		t.motors = readPulses(r)
	}},
}

func readPulses(r *msp.InboundMessage) []uint16 {
	pulses := make([]uint16, 0, r.Len()/2)
	for r.Remaining() >= 2 {
		pulses = append(pulses, r.ReadU16())
	}
	return pulses
}
