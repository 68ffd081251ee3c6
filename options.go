package birdelevator

import (
	"log"
	"time"
)

// An Option configures a controller.
type Option func(c *Controller) (Option, error)

// Options sets different configuration options and returns the previous
// value of the last option passed. Options that change how readings are
// judged take effect at once: the stored samples are decided again and the
// motor follows.
func (c *Controller) Options(options ...Option) (Option, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var old Option
	var err error
	for _, opt := range options {
		old, err = opt(c)
		if err != nil {
			return nil, err
		}
	}

	return old, nil
}

// Setpoint sets the target distance in centimeters. By default, the
// setpoint is 0.
func Setpoint(cm float64) Option {
	return func(c *Controller) (Option, error) {
		old := c.setpoint
		c.setpoint = cm
		if _, err := c.decide(); err != nil {
			return nil, err
		}
		return Setpoint(old), nil
	}
}

// Band sets the half-width of the band around the setpoint in which the
// elevator waits. Negative values are clamped to 0. By default, the band
// is Noise (5cm).
func Band(cm float64) Option {
	return func(c *Controller) (Option, error) {
		if cm < 0 {
			cm = 0
		}
		old := c.noise
		c.noise = cm
		if _, err := c.decide(); err != nil {
			return nil, err
		}
		return Band(old), nil
	}
}

// HistorySize sets how many samples are averaged. The newest samples that
// fit are kept. By default, Size samples are kept.
func HistorySize(n int) Option {
	return func(c *Controller) (Option, error) {
		old := c.history
		c.history = NewHistory(n)

		kept := old.Samples()
		if len(kept) > c.history.Cap() {
			kept = kept[len(kept)-c.history.Cap():]
		}
		for _, s := range kept {
			c.history.Store(s) // finite, it was stored before
		}

		if _, err := c.decide(); err != nil {
			return nil, err
		}
		return HistorySize(old.Cap()), nil
	}
}

// Interval sets the polling period used by Run. It is read when Run
// starts. Non-positive values select the default of 100ms.
func Interval(d time.Duration) Option {
	return func(c *Controller) (Option, error) {
		if d <= 0 {
			d = defaultInterval
		}
		old := c.interval
		c.interval = d
		return Interval(old), nil
	}
}

// WithSensor sets the sensor read by Poll and Run.
func WithSensor(s Sensor) Option {
	return func(c *Controller) (Option, error) {
		old := c.sensor
		c.sensor = s
		return WithSensor(old), nil
	}
}

// WithLogger sets where state transitions and sensor faults are logged.
// A nil logger disables logging, which is the default.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) (Option, error) {
		old := c.logger
		c.logger = l
		return WithLogger(old), nil
	}
}
