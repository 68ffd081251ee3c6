package birdelevator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	// ErrNonFinite is returned when a sample is NaN or infinite. Such a
	// sample is never stored and forces the controller into Invalid.
	ErrNonFinite = errors.New("sample is not a finite number")
	// ErrNoSensor is returned by Poll and Run when the controller has no
	// sensor to read from.
	ErrNoSensor = errors.New("no sensor configured")
	// ErrMotor wraps every error returned by the motor.
	ErrMotor = errors.New("motor failure")
)

// Motor drives the elevator. SetMotor must be safe to call repeatedly with
// the same direction.
type Motor interface {
	SetMotor(Direction) error
}

// Sensor returns the current distance in centimeters.
type Sensor interface {
	Distance() (float64, error)
}

// Controller moves the elevator towards a setpoint based on the average of
// the latest sensor readings.
type Controller struct {
	motor  Motor
	readCh chan struct{}

	mu       sync.Mutex
	sensor   Sensor
	history  *History
	state    State
	dir      Direction
	applied  bool
	setpoint float64
	noise    float64
	interval time.Duration
	logger   *log.Logger
}

// New returns a new controller for the motor. The motor is switched off
// before New returns, and the controller starts in Invalid until the first
// sample arrives.
func New(m Motor, options ...Option) (*Controller, error) {
	if m == nil {
		return nil, errors.New("birdelevator: nil motor")
	}

	c := &Controller{
		motor:    m,
		readCh:   make(chan struct{}, 1),
		history:  NewHistory(Size),
		noise:    Noise,
		interval: defaultInterval,
	}
	c.readCh <- struct{}{}

	if err := c.command(Off); err != nil {
		return nil, fmt.Errorf("birdelevator: could not switch motor off: %w", err)
	}
	if _, err := c.Options(options...); err != nil {
		return nil, fmt.Errorf("birdelevator: could not configure controller: %w", err)
	}

	return c, nil
}

// Feed runs one control cycle with an already acquired sample and returns
// the resulting state.
func (c *Controller) Feed(sample float64) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.feed(sample)
}

// Poll reads the sensor and runs one control cycle with the reading. A
// failed read switches the motor off.
func (c *Controller) Poll() (State, error) {
	c.mu.Lock()
	s := c.sensor
	c.mu.Unlock()
	if s == nil {
		return c.State(), fmt.Errorf("birdelevator: could not poll: %w", ErrNoSensor)
	}

	<-c.readCh
	d, err := s.Distance()
	c.readCh <- struct{}{}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return c.fail(fmt.Errorf("birdelevator: could not read sensor: %w", err))
	}

	return c.feed(d)
}

// Run polls the sensor every interval until ctx is done or the motor fails.
// Sensor errors are logged and the loop keeps going with the motor off. The
// motor is always switched off before Run returns.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() {
		if serr := c.Stop(); serr != nil {
			err = errors.Join(err, serr)
		}
	}()

	c.mu.Lock()
	t := time.NewTicker(c.interval)
	c.mu.Unlock()
	defer t.Stop()

	for {
		if _, err := c.Poll(); err != nil {
			if errors.Is(err, ErrMotor) || errors.Is(err, ErrNoSensor) {
				return err
			}
			c.logf("%v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Stop switches the motor off, drops the stored samples and puts the
// controller back into Invalid.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history.Reset()
	c.setState(Invalid)
	c.applied = false
	if err := c.command(Off); err != nil {
		return fmt.Errorf("birdelevator: could not stop: %w", err)
	}
	return nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Direction returns the last direction successfully sent to the motor.
func (c *Controller) Direction() Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

// Average returns the filtered distance. It returns false if no valid
// sample is stored.
func (c *Controller) Average() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Average()
}

// Samples returns the stored samples, oldest first.
func (c *Controller) Samples() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Samples()
}

// Setpoint returns the target distance in centimeters.
func (c *Controller) Setpoint() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setpoint
}

func (c *Controller) feed(sample float64) (State, error) {
	if err := c.history.Store(sample); err != nil {
		return c.fail(err)
	}

	return c.decide()
}

// decide moves to the state the stored samples call for. With nothing
// stored the controller is Invalid.
func (c *Controller) decide() (State, error) {
	avg, ok := c.history.Average()
	if !ok {
		return c.transition(Invalid)
	}
	return c.transition(Decide(avg, c.setpoint, c.noise))
}

// fail drops the stored samples so stale readings cannot move the motor,
// and falls back to Invalid.
func (c *Controller) fail(cause error) (State, error) {
	c.history.Reset()
	if _, err := c.transition(Invalid); err != nil {
		return Invalid, errors.Join(cause, err)
	}
	return Invalid, cause
}

func (c *Controller) transition(s State) (State, error) {
	c.setState(s)

	dir := s.Direction()
	if err := c.command(dir); err != nil {
		c.setState(Invalid)
		if dir != Off {
			if offErr := c.command(Off); offErr != nil {
				err = errors.Join(err, offErr)
			}
		}
		return Invalid, fmt.Errorf("birdelevator: could not set motor %v: %w", dir, err)
	}

	return s, nil
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	if avg, ok := c.history.Average(); ok {
		c.logf("%v -> %v (average %.1fcm, spread %.1fcm, setpoint %.1fcm)",
			c.state, s, avg, c.history.Spread(), c.setpoint)
	} else {
		c.logf("%v -> %v", c.state, s)
	}
	c.state = s
}

// command sends dir to the motor unless it is already applied.
func (c *Controller) command(dir Direction) error {
	if c.applied && c.dir == dir {
		return nil
	}
	if err := c.motor.SetMotor(dir); err != nil {
		c.applied = false
		return fmt.Errorf("%w: %w", ErrMotor, err)
	}
	c.dir = dir
	c.applied = true
	return nil
}

func (c *Controller) logf(format string, v ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Output(2, fmt.Sprintf(format, v...))
}
