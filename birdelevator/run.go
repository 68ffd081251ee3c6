package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cgxeiji/birdelevator"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newLogger() *log.Logger {
	return log.New(os.Stdout, xid.New().String()+" ", log.Ltime|log.Lshortfile)
}

func newRunCmd(cfg config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Move the elevator to the setpoint and hold it there until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), &cfg)
		},
	}
	cfg.sensorFlags(cmd)
	cfg.motorFlags(cmd)
	cfg.controlFlags(cmd)

	return cmd
}

func run(ctx context.Context, cfg *config) error {
	logger := newLogger()

	motor, err := cfg.openMotor()
	if err != nil {
		return err
	}
	atexit.Register(func() {
		if err := motor.Close(); err != nil {
			logger.Printf("could not release motor: %v", err)
		}
	})

	sensor, err := cfg.openSensor(logger)
	if err != nil {
		return err
	}
	defer sensor.Close()

	ctrl, err := birdelevator.New(motor,
		birdelevator.Setpoint(cfg.Setpoint),
		birdelevator.Band(cfg.Noise),
		birdelevator.HistorySize(cfg.Size),
		birdelevator.Interval(cfg.Interval),
		birdelevator.WithSensor(sensor),
		birdelevator.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("holding %.1fcm ±%.1fcm", cfg.Setpoint, cfg.Noise)
	err = ctrl.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newMeasureCmd(cfg config) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Print filtered sensor readings without moving the elevator.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return measure(&cfg, count)
		},
	}
	cfg.sensorFlags(cmd)
	cfg.controlFlags(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of readings, 0 reads forever")

	return cmd
}

func measure(cfg *config, count int) error {
	sensor, err := cfg.openSensor(newLogger())
	if err != nil {
		return err
	}
	defer sensor.Close()

	h := birdelevator.NewHistory(cfg.Size)
	t := time.NewTicker(cfg.Interval)
	defer t.Stop()

	for i := 0; count == 0 || i < count; i++ {
		d, err := sensor.Distance()
		report(os.Stdout, h, d, err, cfg)
		<-t.C
	}

	return nil
}

// report stores one reading and prints it. A failed reading or a rejected
// sample clears the history, as the controller does.
func report(w io.Writer, h *birdelevator.History, d float64, err error, cfg *config) {
	if err == nil {
		err = h.Store(d)
	}
	if err != nil {
		fmt.Fprintf(w, "distance = ---     (%v)\n", err)
		h.Reset()
		return
	}

	avg, _ := h.Average()
	state := birdelevator.Decide(avg, cfg.Setpoint, cfg.Noise)
	fmt.Fprintf(w, "distance = %6.1fcm average = %6.1fcm spread = %4.1fcm %v\n",
		d, avg, h.Spread(), state)
}
