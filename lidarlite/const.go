package lidarlite

// Register addresses
const (
	AcqCommand      = 0x00
	Status          = 0x01
	SigCountVal     = 0x02
	AcqConfig       = 0x04
	FullDelayHigh   = 0x0F
	FullDelayLow    = 0x10
	UnitIDHigh      = 0x16
	UnitIDLow       = 0x17
	ThresholdBypass = 0x1C
	MeasureDelay    = 0x45

	// autoIncrement makes a multi-byte read walk consecutive registers.
	autoIncrement = 0x80
)

// Status flags
const (
	Busy            byte = (1 << 0)
	RefOverflow     byte = (1 << 1)
	SignalOverflow  byte = (1 << 2)
	InvalidSignal   byte = (1 << 3)
	SecondaryReturn byte = (1 << 4)
	Health          byte = (1 << 5)
	ProcessError    byte = (1 << 6)
)

// Device constants
const (
	Addr = 0x62

	// MaxRange is the farthest distance the sensor reports, in centimeters.
	MaxRange = 4000
)

// Acquisition commands
const (
	CmdReset       byte = 0x00
	CmdMeasure     byte = 0x03
	CmdMeasureBias byte = 0x04

	// biasEvery is how often a measurement runs with receiver bias
	// correction.
	biasEvery = 100
)

// Configuration presets, see Preset.
const (
	PresetDefault = iota
	PresetShortRange
	PresetHighSpeed
	PresetMaxRange
	PresetHighSensitivity
	PresetLowSensitivity
)

// presets holds the SigCountVal, AcqConfig and ThresholdBypass values of
// each preset.
var presets = [...][3]byte{
	PresetDefault:         {0x80, 0x08, 0x00},
	PresetShortRange:      {0x1D, 0x08, 0x00},
	PresetHighSpeed:       {0x80, 0x00, 0x00},
	PresetMaxRange:        {0xFF, 0x08, 0x00},
	PresetHighSensitivity: {0x80, 0x08, 0x80},
	PresetLowSensitivity:  {0x80, 0x08, 0xB0},
}
