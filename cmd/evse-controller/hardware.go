package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sweeney/evse-controller/internal/config"
	"github.com/sweeney/evse-controller/internal/evse"
	"github.com/sweeney/evse-controller/internal/hal"
	"github.com/sweeney/evse-controller/internal/storage"
)

// initialCPOhm reads as "no vehicle" until the first ADC sample arrives.
const initialCPOhm = 100000

// devices is the opened board.
type devices struct {
	hw      evse.Hardware
	adc     *hal.Measurements
	led     *hal.Indicator
	ledLine *hal.GPIOOutput // nil when the LED is disabled
	jumper  hal.Jumper
	closers []io.Closer
}

func openDevices(cfg config.Config) (_ *devices, err error) {
	d := &devices{
		adc: hal.NewMeasurements(initialCPOhm, 0),
		led: hal.NewIndicator(time.Now, cfg.LEDStandby),
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	d.jumper, err = hal.ReadJumper(cfg.GPIO.Chip, cfg.GPIO.Jumper0, cfg.GPIO.Jumper1)
	if err != nil {
		return nil, fmt.Errorf("read jumper: %w", err)
	}

	pwm, err := hal.NewSysfsPWM(cfg.PWM.Chip, cfg.PWM.Channel)
	if err != nil {
		return nil, fmt.Errorf("init pwm: %w", err)
	}
	d.closers = append(d.closers, pwm)

	relay, err := hal.NewGPIOOutput(cfg.GPIO.Chip, cfg.GPIO.Relay)
	if err != nil {
		return nil, fmt.Errorf("init relay: %w", err)
	}
	d.closers = append(d.closers, relay)

	d.hw = evse.Hardware{
		PWM:   pwm,
		Relay: relay,
		ADC:   d.adc,
		Check: hal.NewContactorMonitor(),
		LED:   d.led,
		Store: storage.NewFileStore(cfg.StoragePath),
	}

	if cfg.GPIO.Button >= 0 {
		btn, err := hal.NewGPIOInput(cfg.GPIO.Chip, cfg.GPIO.Button, cfg.GPIO.ButtonActiveLow)
		if err != nil {
			return nil, fmt.Errorf("init button: %w", err)
		}
		d.closers = append(d.closers, btn)
		d.hw.Button = btn
	}

	if cfg.GPIO.Sense >= 0 {
		sense, err := hal.NewGPIOInput(cfg.GPIO.Chip, cfg.GPIO.Sense, false)
		if err != nil {
			return nil, fmt.Errorf("init contactor sense: %w", err)
		}
		d.closers = append(d.closers, sense)
		d.hw.Sense = sense
	} else {
		log.Printf("contactor sense disabled, contactor check inactive")
	}

	if cfg.LEDEnabled && cfg.GPIO.LED >= 0 {
		d.ledLine, err = hal.NewGPIOOutput(cfg.GPIO.Chip, cfg.GPIO.LED)
		if err != nil {
			return nil, fmt.Errorf("init led: %w", err)
		}
		d.closers = append(d.closers, d.ledLine)
	}

	return d, nil
}

// Close releases the lines in reverse order. The relay goes low on close.
func (d *devices) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
