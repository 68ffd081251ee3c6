package main

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cgxeiji/birdelevator"
	"github.com/cgxeiji/birdelevator/lidarlite"
	"github.com/cgxeiji/birdelevator/relay"
	"github.com/spf13/cobra"
)

// config holds the flag defaults. Each field can be overridden with a BIRD_*
// environment variable.
type config struct {
	Bus    string `env:"BUS"`
	Addr   uint16 `env:"ADDR"`
	Preset int    `env:"PRESET"`

	Up   string `env:"UP"`
	Down string `env:"DOWN"`
	RPIO bool   `env:"RPIO"`

	Setpoint float64       `env:"SETPOINT"`
	Noise    float64       `env:"NOISE"`
	Size     int           `env:"SIZE"`
	Interval time.Duration `env:"INTERVAL"`
}

// loadConfig returns the defaults overridden by the environment. A variable
// that cannot be parsed is an error.
func loadConfig() (config, error) {
	cfg := config{
		Preset:   lidarlite.PresetDefault,
		Up:       "GPIO17",
		Down:     "GPIO27",
		Noise:    birdelevator.Noise,
		Size:     birdelevator.Size,
		Interval: 100 * time.Millisecond,
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "BIRD_"}); err != nil {
		return config{}, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

func (c *config) sensorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.Bus, "bus", c.Bus, "I2C bus of the sensor (empty selects the first one)")
	f.Uint16Var(&c.Addr, "addr", c.Addr, "I2C address of the sensor (0 selects 98, i.e. 0x62)")
	f.IntVar(&c.Preset, "preset", c.Preset, "sensor configuration preset (0-5)")
}

func (c *config) motorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.Up, "up", c.Up, "pin of the up relay")
	f.StringVar(&c.Down, "down", c.Down, "pin of the down relay")
	f.BoolVar(&c.RPIO, "rpio", c.RPIO, "drive the relays with go-rpio, pins are BCM numbers")
}

func (c *config) controlFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&c.Setpoint, "setpoint", c.Setpoint, "target height in cm")
	f.Float64Var(&c.Noise, "noise", c.Noise, "tolerance around the setpoint in cm")
	f.IntVar(&c.Size, "size", c.Size, "number of samples averaged")
	f.DurationVar(&c.Interval, "interval", c.Interval, "polling period")
}

func (c *config) openSensor(logger *log.Logger) (*lidarlite.Device, error) {
	sensor, err := lidarlite.New(c.Bus, c.Addr, lidarlite.Preset(c.Preset))
	if err != nil {
		return nil, err
	}

	if id, err := sensor.UnitID(); err == nil {
		logger.Printf("LIDAR-Lite unit %#04x on bus %q", id, c.Bus)
	}
	if ok, err := sensor.Healthy(); err != nil {
		logger.Printf("could not check sensor health: %v", err)
	} else if !ok {
		logger.Printf("sensor reports bad health, readings may be unreliable")
	}

	return sensor, nil
}

func (c *config) openMotor() (*relay.Relay, error) {
	if !c.RPIO {
		return relay.New(c.Up, c.Down)
	}

	up, err := strconv.Atoi(c.Up)
	if err != nil {
		return nil, fmt.Errorf("invalid up pin %q: %w", c.Up, err)
	}
	down, err := strconv.Atoi(c.Down)
	if err != nil {
		return nil, fmt.Errorf("invalid down pin %q: %w", c.Down, err)
	}
	return relay.NewRPIO(up, down)
}
