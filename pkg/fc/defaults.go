// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fc

// DefaultConfig returns the factory configuration restored by a reset.
func DefaultConfig() Config {
	c := Config{
		ModelName:   "",
		FeatureMask: uint32(FeatureRxSerial | FeatureMotorStop | FeatureAirmode | FeatureDynamicFilter),
		MixerType:   MixerQuadX,

		AccelDev: DeviceDefault,
		BaroDev:  DeviceDefault,
		MagDev:   DeviceDefault,

		VbatCellWarning: 35,
		VbatScale:       100,
		VbatResDiv:      10,
		VbatResMult:     1,

		BlackboxDev:    0,
		BlackboxPdenom: 32,

		TpaScale:      10,
		TpaBreakpoint: 1650,
		GyroSync:      1,
		LoopSync:      2,
		GyroDlpf:      GyroDlpf256,

		GyroFilter:        FilterConfig{Type: FilterPT1, Freq: 100},
		GyroFilter2:       FilterConfig{Type: FilterPT1, Freq: 188},
		GyroDynLpfFilter:  FilterConfig{Type: FilterPT1, Freq: 200, Cutoff: 90},
		GyroNotch1Filter:  FilterConfig{Type: FilterNotch},
		GyroNotch2Filter:  FilterConfig{Type: FilterNotch},
		DtermFilter:       FilterConfig{Type: FilterPT1, Freq: 100},
		DtermFilter2:      FilterConfig{Type: FilterPT1, Freq: 150},
		DtermDynLpfFilter: FilterConfig{Type: FilterPT1, Freq: 150, Cutoff: 60},
		DtermNotchFilter:  FilterConfig{Type: FilterNotch},
		YawFilter:         FilterConfig{Type: FilterPT1, Freq: 100},

		DtermSetpointWeight: 30,
		AngleLimit:          55,
	}

	for i := range c.Conditions {
		c.Conditions[i] = Condition{ID: 0, Ch: AuxChannelOffset, Min: 900, Max: 900}
	}
	c.Conditions[0] = Condition{ID: uint8(ModeArmed), Ch: AuxChannelOffset, Min: 1700, Max: 2100}
	c.Conditions[1] = Condition{ID: uint8(ModeAngle), Ch: AuxChannelOffset + 1, Min: 1700, Max: 2100}

	c.Serial[0] = SerialPortConfig{ID: SerialUART0, FunctionMask: SerialFunctionMSP, BaudIndex: 5}
	c.Serial[1] = SerialPortConfig{ID: SerialUART1, FunctionMask: SerialFunctionRxSerial, BaudIndex: 5}
	c.Serial[2] = SerialPortConfig{ID: SerialUART2, BaudIndex: 5}

	c.Input = InputConfig{
		Deadband:              3,
		SerialRxProvider:      2,
		MinCheck:              1050,
		MidRc:                 1500,
		MaxCheck:              1900,
		MinRc:                 885,
		MaxRc:                 2115,
		InterpolationMode:     2,
		InterpolationInterval: 26,
		Rate:                  [3]uint8{70, 70, 65},
		Expo:                  [3]uint8{0, 0, 0},
		SuperRate:             [3]uint8{80, 80, 75},
	}
	for i := range c.Input.Channel {
		c.Input.Channel[i] = InputChannelConfig{Map: uint8(i), FsMode: 0, FsValue: 1500}
	}
	c.Input.Channel[2].FsValue = 1000 // throttle

	c.Output = OutputConfig{
		MinThrottle: 1050,
		MaxThrottle: 2000,
		MinCommand:  1000,
		Async:       0,
		Protocol:    1,
		Rate:        480,
		DshotIdle:   550,
	}
	for i := range c.Output.Channel {
		c.Output.Channel[i] = OutputChannelConfig{Min: 1000, Max: 2000, Neutral: 1500}
		c.Output.Pin[i] = -1
	}
	for i := 0; i < 4; i++ {
		c.Output.Pin[i] = int8(i)
	}

	c.Pid[PidRoll] = PidConfig{P: 42, I: 85, D: 30, F: 90}
	c.Pid[PidPitch] = PidConfig{P: 46, I: 90, D: 32, F: 95}
	c.Pid[PidYaw] = PidConfig{P: 45, I: 90, D: 0, F: 90}
	c.Pid[PidLevel] = PidConfig{P: 55, I: 0, D: 0}

	return c
}

// MixerMotorCount returns the number of motors driven by a mixer type.
func MixerMotorCount(mixer uint8) uint8 {
	switch mixer {
	case MixerTri:
		return 3
	case MixerBicopter:
		return 2
	case MixerQuadP, MixerQuadX:
		return 4
	case MixerHex6, MixerHex6X:
		return 6
	case MixerOctoX8:
		return 8
	default:
		return 0
	}
}
