package lidarlite

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

var (
	// ErrNoReturn is returned when a measurement finishes without a
	// usable return signal (e.g. nothing in front of the sensor).
	ErrNoReturn = errors.New("lidarlite: no return signal")
	// ErrTimeout is returned when the device stays busy for too long.
	ErrTimeout = errors.New("lidarlite: device busy for too long")
)

// maxPolls bounds how many times the status register is read while waiting
// for the device.
const maxPolls = 1000

// resetDelay is how long the device takes to come back after a reset.
var resetDelay = 22 * time.Millisecond

// Device defines a LIDAR-Lite v3 device.
type Device struct {
	dev *i2c.Dev
	bus i2c.BusCloser

	count int
}

// New returns a new LIDAR-Lite v3 device. The device is reset and the
// options are applied. Without options, the device is set to the default
// preset: 128 acquisitions per measurement and the default detection
// threshold.
//
// Argument "busName" can be used to specify the exact bus to use ("/dev/i2c-1", "I2C1", "1").
// Argument "addr" can be used to specify an alternative address if the default (0x62) was changed.
// If "busName" argument is specified as an empty string "" the first available bus will be used.
func New(busName string, addr uint16, options ...Option) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("lidarlite: could not initialize host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("lidarlite: could not open I2C bus: %w", err)
	}

	d := NewWithBus(bus, addr)
	if err := d.setup(options...); err != nil {
		bus.Close()
		return nil, err
	}

	return d, nil
}

func (d *Device) setup(options ...Option) error {
	if len(options) == 0 {
		options = []Option{Preset(PresetDefault)}
	}

	if err := d.Reset(); err != nil {
		return fmt.Errorf("lidarlite: could not reset device: %w", err)
	}
	if _, err := d.Options(options...); err != nil {
		return fmt.Errorf("lidarlite: could not initialize device: %w", err)
	}

	return nil
}

// NewWithBus returns a device on an already opened bus. The device is not
// reset nor configured.
func NewWithBus(bus i2c.BusCloser, addr uint16) *Device {
	if addr == 0 {
		addr = Addr
	}

	return &Device{
		dev: &i2c.Dev{
			Addr: addr,
			Bus:  bus,
		},
		bus: bus,
	}
}

// Close closes the bus.
func (d *Device) Close() error {
	return d.bus.Close()
}

// UnitID returns the serial number of the device.
func (d *Device) UnitID() (uint16, error) {
	hi, err := d.Read(UnitIDHigh)
	if err != nil {
		return 0, fmt.Errorf("lidarlite: could not get unit ID: %w", err)
	}
	lo, err := d.Read(UnitIDLow)
	if err != nil {
		return 0, fmt.Errorf("lidarlite: could not get unit ID: %w", err)
	}

	return uint16(hi)<<8 | uint16(lo), nil
}

// Healthy reports whether the device reference and receiver bias are
// operational.
func (d *Device) Healthy() (bool, error) {
	state, err := d.Read(Status)
	if err != nil {
		return false, fmt.Errorf("lidarlite: could not read status: %w", err)
	}
	return state&Health != 0, nil
}

// Distance triggers a measurement and returns the distance in centimeters.
// Every 100th measurement, starting with the first one, runs with receiver
// bias correction.
func (d *Device) Distance() (float64, error) {
	cmd := CmdMeasure
	if d.count%biasEvery == 0 {
		cmd = CmdMeasureBias
	}
	d.count++

	if err := d.Write(AcqCommand, cmd); err != nil {
		return 0, fmt.Errorf("lidarlite: could not start measurement: %w", err)
	}
	if err := d.waitUntil(Status, Busy, 0); err != nil {
		return 0, fmt.Errorf("lidarlite: could not finish measurement: %w", err)
	}

	b, err := d.ReadBytes(FullDelayHigh|autoIncrement, 2)
	if err != nil {
		return 0, fmt.Errorf("lidarlite: could not read distance: %w", err)
	}

	cm := int(b[0])<<8 | int(b[1])
	if cm == 0 || cm > MaxRange {
		return 0, ErrNoReturn
	}

	return float64(cm), nil
}

func (d *Device) waitUntil(reg, flag byte, bit byte) error {
	if bit > 1 {
		return fmt.Errorf("invalid bit %v, it should be 1 or 0", bit)
	}

	for i := 0; i < maxPolls; i++ {
		state, err := d.Read(reg)
		if err != nil {
			return fmt.Errorf("could not wait for %v in %v to be %v: %w", flag, reg, bit, err)
		}
		if (bit == 1) == (state&flag != 0) {
			return nil
		}
	}

	return ErrTimeout
}

// Read reads a single byte from a register.
func (d *Device) Read(reg byte) (byte, error) {
	b := make([]byte, 1)
	if err := d.dev.Tx([]byte{reg}, b); err != nil {
		return 0, fmt.Errorf("lidarlite: could not read byte: %w", err)
	}

	return b[0], nil
}

// ReadBytes read n bytes from a register.
func (d *Device) ReadBytes(reg byte, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := d.dev.Tx([]byte{reg}, b); err != nil {
		return nil, fmt.Errorf("lidarlite: could not read %d bytes: %w", n, err)
	}

	return b, nil
}

// Write writes a byte to a register.
func (d *Device) Write(reg, data byte) error {
	n, err := d.dev.Write([]byte{reg, data})
	if err != nil {
		return err
	}
	n-- // remove register write
	if n != 1 {
		return fmt.Errorf("write: wrong number of bytes written: want %d, got %d", 1, n)
	}

	return nil
}

// Reset resets the device. All configurations are set back to their
// power-on state.
func (d *Device) Reset() error {
	if err := d.Write(AcqCommand, CmdReset); err != nil {
		return fmt.Errorf("lidarlite: could not reset: %w", err)
	}
	time.Sleep(resetDelay)
	d.count = 0

	return nil
}
