// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/gyrostat/pkg/fc"
	"github.com/Thermoquad/gyrostat/pkg/msp"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Telemetry data, one polling round
type telemetryData struct {
	timestamp time.Time

	hasStatus      bool
	cycleTime      uint16 // µs
	i2cErrors      uint16
	sensors        uint16
	modeMask       uint32
	load           uint16
	armingDisabled uint32

	hasAttitude bool
	roll        float64 // degrees
	pitch       float64 // degrees
	heading     int16

	hasAnalog bool
	voltage   float64

	rc     []uint16
	motors []uint16
}

// armingBlockers names the arming-disable reasons the monitor knows.
var armingBlockers = []struct {
	flag uint32
	name string
}{
	{fc.ArmingDisabledNoGyro, "NO_GYRO"},
	{fc.ArmingDisabledRxFailsafe, "RX_FAILSAFE"},
	{fc.ArmingDisabledThrottle, "THROTTLE"},
	{fc.ArmingDisabledCalibrating, "CALIBRATING"},
}

// sensorNames follows the STATUS sensor bit order.
var sensorNames = []string{"ACC", "BARO", "MAG", "GPS", "SONAR", "GYRO"}

// TUI model
type model struct {
	connInfo      string
	started       time.Time
	stats         *msp.Stats
	modeNames     []string
	eventLog      []eventLogEntry
	maxLogEntries int
	channels      table.Model
	width         int
	height        int
	quitting      bool
	lastTelemetry *telemetryData
}

// Messages
type tickMsg time.Time
type modeNamesMsg []string
type telemetryMsg struct {
	data *telemetryData
}
type anomalyMsg struct {
	opcode  uint8
	message string
}
type pollErrorMsg struct {
	opcode uint8
	err    error
}

// formatUptime formats a duration in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	plural := func(n uint64, unit string) {
		if n == 1 {
			parts = append(parts, "1 "+unit)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	if days > 0 {
		plural(days, "day")
	}
	if hours > 0 {
		plural(hours, "hour")
	}
	if minutes > 0 {
		plural(minutes, "minute")
	}
	if seconds > 0 || len(parts) == 0 {
		plural(seconds, "second")
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, stats *msp.Stats) model {
	channels := table.New(
		table.WithColumns([]table.Column{
			{Title: "Ch", Width: 4},
			{Title: "RC (µs)", Width: 9},
			{Title: "Motor (µs)", Width: 11},
		}),
		table.WithHeight(fc.OutputChannels+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	channels.SetStyles(styles)

	return model{
		connInfo:      connInfo,
		started:       time.Now(),
		stats:         stats,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		channels:      channels,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case modeNamesMsg:
		m.modeNames = msg
		m.addLogEntry(fmt.Sprintf("Modes: %s", strings.Join(msg, ", ")), false)

	case telemetryMsg:
		prev := m.lastTelemetry
		m.lastTelemetry = msg.data
		m.channels.SetRows(channelRows(msg.data))
		if prev != nil && prev.hasStatus && msg.data.hasStatus {
			wasArmed := prev.modeMask&fc.ModeArmed.Mask() != 0
			isArmed := msg.data.modeMask&fc.ModeArmed.Mask() != 0
			switch {
			case isArmed && !wasArmed:
				m.addLogEntry("Armed", false)
			case wasArmed && !isArmed:
				m.addLogEntry("Disarmed", false)
			}
		}

	case anomalyMsg:
		m.addLogEntry(fmt.Sprintf("%s: %s", msp.OpcodeName(msg.opcode), msg.message), true)

	case pollErrorMsg:
		m.addLogEntry(fmt.Sprintf("%s: %v", msp.OpcodeName(msg.opcode), msg.err), true)
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func channelRows(t *telemetryData) []table.Row {
	n := len(t.rc)
	if len(t.motors) > n {
		n = len(t.motors)
	}
	rows := make([]table.Row, 0, n)
	for i := 0; i < n; i++ {
		rc, motor := "-", "-"
		if i < len(t.rc) {
			rc = fmt.Sprintf("%d", t.rc[i])
		}
		if i < len(t.motors) {
			motor = fmt.Sprintf("%d", t.motors[i])
		}
		rows = append(rows, table.Row{fmt.Sprintf("%d", i+1), rc, motor})
	}
	return rows
}

// activeModes lists the names of the modes set in mask.
func (m model) activeModes(mask uint32) string {
	var active []string
	for i, name := range m.modeNames {
		if i < 32 && mask&(1<<uint(i)) != 0 {
			active = append(active, name)
		}
	}
	if len(active) == 0 {
		return "none"
	}
	return strings.Join(active, " ")
}

func presentSensors(mask uint16) string {
	var present []string
	for i, name := range sensorNames {
		if mask&(1<<uint(i)) != 0 {
			present = append(present, name)
		}
	}
	return strings.Join(present, " ")
}

func blockers(flags uint32) string {
	var names []string
	for _, b := range armingBlockers {
		if flags&b.flag != 0 {
			names = append(names, b.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("0x%08X", flags)
	}
	return strings.Join(names, " ")
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("GYROSTAT - MONITOR"))
	s.WriteString("\n")
	elapsed := uint64(time.Since(m.started).Milliseconds())
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Session: %s | Press 'q' to quit",
		m.connInfo, formatUptime(elapsed))))
	s.WriteString("\n\n")

	// Link statistics
	snap := m.stats.Snapshot()
	link := strings.Builder{}
	link.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Replies:"), valueStyle.Render(fmt.Sprintf("%d", snap.Frames)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", snap.FrameRate())),
		labelStyle.Render("Bytes:"), valueStyle.Render(fmt.Sprintf("%d", snap.Bytes)),
	))
	framing := snap.FramingErrors()
	framingStyle := valueStyle
	if framing > 0 {
		framingStyle = errorStyle
	}
	link.WriteString(fmt.Sprintf("%s %s %s",
		labelStyle.Render("Framing Errors:"), framingStyle.Render(fmt.Sprintf("%d", framing)),
		headerStyle.Render(fmt.Sprintf("(checksum %d, oversized %d, sync %d)",
			snap.ChecksumErrors, snap.Oversized, snap.SyncDrops)),
	))
	s.WriteString(boxStyle.Render(link.String()))
	s.WriteString("\n\n")

	// Telemetry
	if t := m.lastTelemetry; t != nil {
		s.WriteString(labelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")

		tel := strings.Builder{}
		if t.hasStatus {
			armed := warningStyle.Render("DISARMED")
			if t.modeMask&fc.ModeArmed.Mask() != 0 {
				armed = errorStyle.Render("ARMED")
			}
			tel.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				labelStyle.Render("State:"), armed,
				labelStyle.Render("Modes:"), valueStyle.Render(m.activeModes(t.modeMask)),
			))
			if t.armingDisabled != 0 {
				tel.WriteString(fmt.Sprintf("%s %s\n",
					labelStyle.Render("Arming blocked:"), warningStyle.Render(blockers(t.armingDisabled)),
				))
			}
			tel.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
				labelStyle.Render("Cycle:"), valueStyle.Render(fmt.Sprintf("%d µs", t.cycleTime)),
				labelStyle.Render("Load:"), valueStyle.Render(fmt.Sprintf("%.1f%%", float64(t.load)/10)),
				labelStyle.Render("I2C errors:"), valueStyle.Render(fmt.Sprintf("%d", t.i2cErrors)),
			))
			tel.WriteString(fmt.Sprintf("%s %s\n",
				labelStyle.Render("Sensors:"), valueStyle.Render(presentSensors(t.sensors)),
			))
		}
		if t.hasAttitude {
			tel.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
				labelStyle.Render("Roll:"), valueStyle.Render(fmt.Sprintf("%6.1f°", t.roll)),
				labelStyle.Render("Pitch:"), valueStyle.Render(fmt.Sprintf("%6.1f°", t.pitch)),
				labelStyle.Render("Heading:"), valueStyle.Render(fmt.Sprintf("%4d°", t.heading)),
			))
		}
		if t.hasAnalog {
			tel.WriteString(fmt.Sprintf("%s %s\n",
				labelStyle.Render("Battery:"), valueStyle.Render(fmt.Sprintf("%.1f V", t.voltage)),
			))
		}

		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			boxStyle.Render(strings.TrimSuffix(tel.String(), "\n")),
			" ",
			boxStyle.Render(m.channels.View()),
		))
		s.WriteString("\n\n")
	} else {
		s.WriteString(warningStyle.Render("⏳ Waiting for telemetry..."))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 28 // Reserve space for header, stats and telemetry
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
