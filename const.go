package birdelevator

import "time"

// Defaults
const (
	// Size is the number of samples kept in a History when no other size is
	// given. May be changed to better suit the timing of the sensor.
	Size = 5
	// Noise is the half-width of the band around the setpoint, in
	// centimeters, inside which the elevator is considered arrived.
	Noise = 5.0

	defaultInterval = 100 * time.Millisecond
)
