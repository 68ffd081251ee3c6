package birdelevator

import "math"

// Direction indicates the motor configuration. The zero value is Off.
type Direction uint8

const (
	Off Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Off:
		return "OFF"
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return "Direction(?)"
	}
}

// State represents the elevator as a state machine. The zero value is
// Invalid, which is the state before the first valid reading.
type State uint8

const (
	Invalid State = iota
	MovingUp
	MovingDown
	Waiting
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case MovingUp:
		return "MOVING_UP"
	case MovingDown:
		return "MOVING_DOWN"
	case Waiting:
		return "WAITING"
	default:
		return "State(?)"
	}
}

// Direction returns the motor command for the state. Anything that is not
// an explicit movement maps to Off.
func (s State) Direction() Direction {
	switch s {
	case MovingUp:
		return Up
	case MovingDown:
		return Down
	case Waiting, Invalid:
		return Off
	default:
		return Off
	}
}

// Decide returns the state for a filtered distance relative to a setpoint.
// The sensor measures the platform height, so a reading below the band
// means the platform has to go up. A reading exactly on the edge of the
// band counts as inside it.
func Decide(average, setpoint, noise float64) State {
	if !finite(average) || !finite(setpoint) || !finite(noise) {
		return Invalid
	}

	switch {
	case math.Abs(average-setpoint) <= noise:
		return Waiting
	case average < setpoint:
		return MovingUp
	default:
		return MovingDown
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
