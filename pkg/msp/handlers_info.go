// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import "github.com/Thermoquad/gyrostat/pkg/fc"

// PidNames is the PIDNAMES reply, one ';'-terminated name per PID item.
const PidNames = "ROLL;PITCH;YAW;ALT;Pos;PosR;NavR;LEVEL;MAG;VEL;"

func registerInfoHandlers(t *Table) {
	t.Register(MspAPIVersion, handleAPIVersion)
	t.Register(MspFCVariant, handleFCVariant)
	t.Register(MspFCVersion, handleFCVersion)
	t.Register(MspBoardInfo, handleBoardInfo)
	t.Register(MspBuildInfo, handleBuildInfo)
	t.Register(MspUID, handleUID)
	t.Register(MspName, handleName)
	t.Register(MspSetName, handleSetName)
	t.Register(MspBoxNames, handleBoxNames)
	t.Register(MspBoxIDs, handleBoxIDs)
	t.Register(MspPidNames, handlePidNames)
	t.Register(MspStatus, handleStatus)
	t.Register(MspStatusEx, handleStatus)
}

func handleAPIVersion(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteU8(ProtocolVersion)
	out.WriteU8(APIVersionMajor)
	out.WriteU8(APIVersionMinor)
}

func handleFCVariant(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteBytes([]byte(m.Identity().FlightControllerID), FlightControllerIDLen)
}

func handleFCVersion(_ *InboundMessage, out *OutboundMessage, m Model) {
	id := m.Identity()
	out.WriteU8(id.VersionMajor)
	out.WriteU8(id.VersionMinor)
	out.WriteU8(id.VersionPatch)
}

func handleBoardInfo(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteBytes([]byte(m.Identity().BoardID), BoardIDLen)
	out.WriteU16(0) // hardware revision
	out.WriteU8(0)  // board type: flight controller
}

func handleBuildInfo(_ *InboundMessage, out *OutboundMessage, m Model) {
	id := m.Identity()
	out.WriteBytes([]byte(id.BuildDate), BuildDateLen)
	out.WriteBytes([]byte(id.BuildTime), BuildTimeLen)
	out.WriteBytes([]byte(id.GitRevision), GitRevisionLen)
}

// handleUID sends the 12-byte unique id as three little-endian words.
func handleUID(_ *InboundMessage, out *OutboundMessage, m Model) {
	uid := &m.State().UID
	out.WriteBytes(uid[:], fc.UIDSize)
}

func handleName(_ *InboundMessage, out *OutboundMessage, m Model) {
	out.WriteText(m.Config().ModelName)
}

// handleSetName replaces the model name with up to ModelNameLen bytes of
// the payload. An empty payload clears the name.
func handleSetName(in *InboundMessage, _ *OutboundMessage, m Model) {
	var name [fc.ModelNameLen]byte
	n := min(in.Remaining(), fc.ModelNameLen)
	for i := 0; i < n; i++ {
		name[i] = in.ReadU8()
	}
	end := 0
	for end < n && name[end] != 0 {
		end++
	}
	m.Config().ModelName = string(name[:end])
}

func handleBoxNames(_ *InboundMessage, out *OutboundMessage, _ Model) {
	for _, name := range fc.ModeNames {
		out.WriteText(name)
		out.WriteU8(';')
	}
}

func handleBoxIDs(_ *InboundMessage, out *OutboundMessage, _ Model) {
	for mode := fc.Mode(0); mode < fc.ModeCount; mode++ {
		out.WriteU8(uint8(mode))
	}
}

func handlePidNames(_ *InboundMessage, out *OutboundMessage, _ Model) {
	out.WriteText(PidNames)
}

// sensorMask packs sensor presence as acc, baro, mag, gps, sonar, gyro.
func sensorMask(st *fc.State) uint16 {
	var mask uint16
	if st.AccelPresent {
		mask |= 1 << 0
	}
	if st.BaroPresent {
		mask |= 1 << 1
	}
	if st.MagPresent {
		mask |= 1 << 2
	}
	if st.GyroPresent {
		mask |= 1 << 5
	}
	return mask
}

// handleStatus serves both STATUS and STATUS_EX; they differ in the two
// bytes after the load.
func handleStatus(in *InboundMessage, out *OutboundMessage, m Model) {
	st := m.State()
	out.WriteU16(uint16(st.LoopTime.Microseconds()))
	out.WriteU16(st.I2CErrorCount)
	out.WriteU16(sensorMask(st))
	out.WriteU32(st.ModeMask)
	out.WriteU8(0) // pid profile
	out.WriteU16(st.Load)
	if in.Opcode() == MspStatusEx {
		out.WriteU8(1) // profile count
		out.WriteU8(0) // rate profile
	} else {
		out.WriteU16(0) // gyro cycle time
	}
	out.WriteU8(0) // extra flight mode flag bytes
	out.WriteU8(fc.ArmingDisabledFlagsCount)
	out.WriteU32(st.ArmingDisabledFlags)
	out.WriteU8(0) // reboot required
}
