// Package relay drives a motor through two relays, one per direction.
package relay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cgxeiji/birdelevator"
	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

type output interface {
	Set(high bool) error
}

type periphPin struct {
	p gpio.PinOut
}

func (p periphPin) Set(high bool) error {
	return p.p.Out(gpio.Level(high))
}

type rpioPin rpio.Pin

func (p rpioPin) Set(high bool) error {
	if high {
		rpio.Pin(p).High()
	} else {
		rpio.Pin(p).Low()
	}
	return nil
}

// Relay is a motor with an up relay and a down relay. At most one relay is
// energized at a time.
type Relay struct {
	up     output
	down   output
	closer func() error

	mu      sync.Mutex
	dir     birdelevator.Direction
	applied bool
}

// New returns a relay driven through periph.io GPIO pins ("GPIO17", "P1_11",
// ...). Both relays are released before New returns.
func New(upName, downName string) (*Relay, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("relay: could not initialize host: %w", err)
	}

	up := gpioreg.ByName(upName)
	if up == nil {
		return nil, fmt.Errorf("relay: unknown pin %q", upName)
	}
	down := gpioreg.ByName(downName)
	if down == nil {
		return nil, fmt.Errorf("relay: unknown pin %q", downName)
	}

	return NewWithPins(up, down)
}

// NewWithPins returns a relay driven by the given pins.
func NewWithPins(up, down gpio.PinOut) (*Relay, error) {
	return newRelay(periphPin{up}, periphPin{down}, nil)
}

// NewRPIO returns a relay driven through /dev/gpiomem with go-rpio, using
// BCM pin numbers. Close releases the memory mapping.
func NewRPIO(up, down int) (*Relay, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("relay: could not open gpio memory: %w", err)
	}

	upPin := rpio.Pin(up)
	upPin.Output()
	downPin := rpio.Pin(down)
	downPin.Output()

	r, err := newRelay(rpioPin(upPin), rpioPin(downPin), rpio.Close)
	if err != nil {
		rpio.Close()
		return nil, err
	}
	return r, nil
}

func newRelay(up, down output, closer func() error) (*Relay, error) {
	r := &Relay{
		up:     up,
		down:   down,
		closer: closer,
	}

	if err := r.SetMotor(birdelevator.Off); err != nil {
		return nil, err
	}
	return r, nil
}

// SetMotor energizes the relay for dir. Repeating the current direction does
// nothing. Before a relay is energized the other one is released, so both
// windings are never driven together.
func (r *Relay) SetMotor(dir birdelevator.Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applied && r.dir == dir {
		return nil
	}

	r.applied = false
	if err := r.release(); err != nil {
		return fmt.Errorf("relay: could not set %v: %w", dir, err)
	}

	switch dir {
	case birdelevator.Off:
	case birdelevator.Up:
		if err := r.up.Set(true); err != nil {
			return fmt.Errorf("relay: could not set %v: %w", dir, errors.Join(err, r.release()))
		}
	case birdelevator.Down:
		if err := r.down.Set(true); err != nil {
			return fmt.Errorf("relay: could not set %v: %w", dir, errors.Join(err, r.release()))
		}
	default:
		return fmt.Errorf("relay: unknown direction %v", dir)
	}

	r.dir = dir
	r.applied = true
	return nil
}

// Direction returns the direction currently applied.
func (r *Relay) Direction() birdelevator.Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

func (r *Relay) release() error {
	return errors.Join(r.up.Set(false), r.down.Set(false))
}

// Close releases both relays and the GPIO backend.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applied = false
	r.dir = birdelevator.Off
	err := r.release()
	if r.closer != nil {
		err = errors.Join(err, r.closer())
	}
	return err
}
