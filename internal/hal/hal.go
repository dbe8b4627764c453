// Package hal provides the narrow peripheral interfaces used by the EVSE core
// together with Linux implementations and test doubles.
// The real GPIO implementations use the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package hal

// PWM drives the Control Pilot signal on a fixed 1 kHz carrier.
type PWM interface {
	// SetDutyCycle sets the high time in permille (0..1000).
	SetDutyCycle(permille uint16) error

	// DutyCycle returns the duty cycle currently applied.
	DutyCycle() uint16
}

// Relay is the digital output driving the contactor coil.
type Relay interface {
	Set(on bool) error
	On() bool
}

// ADC exposes the latest resistance measurements. The core may only raise
// the invalid counters, never lower them.
type ADC interface {
	Read() Reading
	RaiseCPInvalid(n uint8)
	RaisePPInvalid(n uint8)
}

// ContactorCheck reports whether the contactor follows the relay output.
type ContactorCheck interface {
	Error() bool
	RaiseInvalid(n uint8)
}

// LED is the visual indicator.
type LED interface {
	// OnWithTimeout turns the LED on; it goes to standby after a timeout.
	OnWithTimeout()
	Off()
	// Blink shows an error code as a number of blinks.
	Blink(code int)
	Breathe()
}

// ButtonInput reads the raw level of the button or key switch.
type ButtonInput interface {
	// Pressed returns true while the button is pressed (key turned to off).
	Pressed() (bool, error)
}

// Sense reads the auxiliary contact of the contactor.
type Sense interface {
	Closed() (bool, error)
}

// MaxDutyCycle is the permille value for a constant high CP line.
const MaxDutyCycle = 1000
