//go:build !linux

package hal

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// GPIOOutput is not available on non-Linux platforms.
type GPIOOutput struct{}

// NewGPIOOutput returns an error on non-Linux platforms.
func NewGPIOOutput(chip string, offset int) (*GPIOOutput, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *GPIOOutput) Set(on bool) error { return errUnsupported }

// On always returns false on non-Linux platforms.
func (o *GPIOOutput) On() bool { return false }

// Close is a no-op on non-Linux platforms.
func (o *GPIOOutput) Close() error { return nil }

// GPIOInput is not available on non-Linux platforms.
type GPIOInput struct{}

// NewGPIOInput returns an error on non-Linux platforms.
func NewGPIOInput(chip string, offset int, activeLow bool) (*GPIOInput, error) {
	return nil, errUnsupported
}

// Pressed is not implemented on non-Linux platforms.
func (i *GPIOInput) Pressed() (bool, error) { return false, errUnsupported }

// Closed is not implemented on non-Linux platforms.
func (i *GPIOInput) Closed() (bool, error) { return false, errUnsupported }

// Close is a no-op on non-Linux platforms.
func (i *GPIOInput) Close() error { return nil }

// ReadJumper returns an error on non-Linux platforms.
func ReadJumper(chip string, pin0, pin1 int) (Jumper, error) {
	return JumperUnconfigured, errUnsupported
}
