package lidarlite

import "fmt"

// Option defines a functional option for the device.
type Option func(d *Device) (Option, error)

// Options set different configuration options and returns the previous value
// of the last option passed.
func (d *Device) Options(options ...Option) (Option, error) {
	var old Option
	var err error
	for _, opt := range options {
		old, err = opt(d)
		if err != nil {
			return nil, err
		}
	}

	return old, nil
}

func (d *Device) config(reg, mask, flag byte) (byte, error) {
	cfg, err := d.Read(reg)
	if err != nil {
		return 0, fmt.Errorf("could not get %v from %v: %w", mask, reg, err)
	}
	old := cfg &^ mask
	cfg &= mask
	cfg |= flag
	if err := d.Write(reg, cfg); err != nil {
		return 0, fmt.Errorf("could not set %v in %v: %w", flag, reg, err)
	}

	return old, nil
}

// MaxAcquisitions sets how many acquisitions are integrated per measurement.
// Higher values increase range and sensitivity at the cost of speed.
func MaxAcquisitions(n byte) Option {
	return func(d *Device) (Option, error) {
		old, err := d.config(SigCountVal, 0, n)
		if err != nil {
			return nil, fmt.Errorf("lidarlite: could not configure max acquisitions: %w", err)
		}

		return MaxAcquisitions(old), nil
	}
}

// AcquisitionMode sets the acquisition configuration register.
func AcquisitionMode(cfg byte) Option {
	return func(d *Device) (Option, error) {
		old, err := d.config(AcqConfig, 0, cfg)
		if err != nil {
			return nil, fmt.Errorf("lidarlite: could not configure acquisition mode: %w", err)
		}

		return AcquisitionMode(old), nil
	}
}

// DetectionThreshold sets the peak detection threshold bypass. 0 selects the
// default detection algorithm; higher values lower sensitivity and false
// detections.
func DetectionThreshold(v byte) Option {
	return func(d *Device) (Option, error) {
		old, err := d.config(ThresholdBypass, 0, v)
		if err != nil {
			return nil, fmt.Errorf("lidarlite: could not configure detection threshold: %w", err)
		}

		return DetectionThreshold(old), nil
	}
}

// Preset applies one of the predefined configurations (PresetDefault,
// PresetShortRange, ...). The returned option restores all three registers.
func Preset(p int) Option {
	return func(d *Device) (Option, error) {
		if p < 0 || p >= len(presets) {
			return nil, fmt.Errorf("lidarlite: unknown preset %d", p)
		}
		cfg := presets[p]

		return all(
			MaxAcquisitions(cfg[0]),
			AcquisitionMode(cfg[1]),
			DetectionThreshold(cfg[2]),
		)(d)
	}
}

func all(options ...Option) Option {
	return func(d *Device) (Option, error) {
		var olds []Option
		for _, opt := range options {
			old, err := opt(d)
			if err != nil {
				return nil, err
			}
			olds = append(olds, old)
		}

		return all(olds...), nil
	}
}
