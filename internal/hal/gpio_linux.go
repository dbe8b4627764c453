//go:build linux

package hal

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOOutput drives one output line, e.g. the contactor relay or the LED.
type GPIOOutput struct {
	line *gpiocdev.Line
	on   bool
}

// NewGPIOOutput requests an output line that starts low.
func NewGPIOOutput(chip string, offset int) (*GPIOOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	return &GPIOOutput{line: line}, nil
}

// Set drives the line high (on) or low.
func (o *GPIOOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	o.on = on
	return nil
}

// On returns the last level written.
func (o *GPIOOutput) On() bool {
	return o.on
}

// Close drives the line low and releases it.
func (o *GPIOOutput) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive low: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// GPIOInput reads one input line with pull-up bias. With ActiveLow set a low
// level reads as true.
type GPIOInput struct {
	line      *gpiocdev.Line
	activeLow bool
}

// NewGPIOInput requests an input line with pull-up bias.
func NewGPIOInput(chip string, offset int, activeLow bool) (*GPIOInput, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", offset, err)
	}
	return &GPIOInput{line: line, activeLow: activeLow}, nil
}

func (i *GPIOInput) read() (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin: %w", err)
	}
	if i.activeLow {
		return v == 0, nil
	}
	return v == 1, nil
}

// Pressed implements ButtonInput.
func (i *GPIOInput) Pressed() (bool, error) {
	return i.read()
}

// Closed implements Sense.
func (i *GPIOInput) Closed() (bool, error) {
	return i.read()
}

// Close releases the line.
func (i *GPIOInput) Close() error {
	return i.line.Close()
}

// JumperSettle is the time the jumper pins get to settle after a bias change.
const JumperSettle = 50 * time.Millisecond

// ReadJumper reads both jumper pins with pull-up and pull-down bias and
// decodes the configuration. The lines are released afterwards.
func ReadJumper(chip string, pin0, pin1 int) (Jumper, error) {
	lines, err := gpiocdev.RequestLines(chip, []int{pin0, pin1}, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return JumperUnconfigured, fmt.Errorf("request jumper pins: %w", err)
	}
	defer lines.Close()

	pu := make([]int, 2)
	time.Sleep(JumperSettle)
	if err := lines.Values(pu); err != nil {
		return JumperUnconfigured, fmt.Errorf("read jumper with pull-up: %w", err)
	}

	if err := lines.Reconfigure(gpiocdev.WithPullDown); err != nil {
		return JumperUnconfigured, fmt.Errorf("reconfigure jumper pull-down: %w", err)
	}
	pd := make([]int, 2)
	time.Sleep(JumperSettle)
	if err := lines.Values(pd); err != nil {
		return JumperUnconfigured, fmt.Errorf("read jumper with pull-down: %w", err)
	}

	// Leave the pins floating
	if err := lines.Reconfigure(gpiocdev.WithBiasDisabled); err != nil {
		return JumperUnconfigured, fmt.Errorf("reconfigure jumper bias: %w", err)
	}

	l0 := LevelFromBias(pu[0] == 1, pd[0] == 1)
	l1 := LevelFromBias(pu[1] == 1, pd[1] == 1)
	return DecodeJumper(l0, l1), nil
}
