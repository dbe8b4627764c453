// Package iec61851 implements the IEC 61851 control pilot state machine.
// It classifies the vehicle state from the CP/PE resistance and derives the
// duty cycle and contactor request for each tick.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package iec61851

import "time"

// State is the connection state of the vehicle.
type State uint8

const (
	StateA  State = iota // no vehicle
	StateB               // vehicle present, not charging
	StateC               // vehicle charging
	StateD               // charging with ventilation, unsupported
	StateEF              // error
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateA:
		return "A"
	case StateB:
		return "B"
	case StateC:
		return "C"
	case StateD:
		return "D"
	case StateEF:
		return "EF"
	default:
		return "UNKNOWN"
	}
}

// CP/PE resistance thresholds in ohms. A reading above a threshold selects
// that state.
//
//	inf  -> no vehicle
//	2700 -> vehicle present
//	 880 -> vehicle charging
//	 240 -> vehicle charging with ventilation
const (
	CPResistanceStateA = 10000
	CPResistanceStateB = 1790
	CPResistanceStateC = 300
	CPResistanceStateD = 150
)

// ID3Debounce is how long a resistance spike above 3x the state A threshold
// must persist before it counts as a disconnect.
const ID3Debounce = 500 * time.Millisecond

// NoChargeDutyCycle is the duty cycle meaning "charging not permitted".
// 100% is used instead of 0% so the vehicle resistance stays measurable.
const NoChargeDutyCycle = 1000

// Blink codes shown on the LED.
const (
	BlinkJumperUnconfigured = 2
	BlinkCalibrationError   = 3
	BlinkContactorError     = 4
	BlinkResistanceError    = 5
)

// OutputIntent is what the state machine wants applied this tick.
type OutputIntent struct {
	DutyCycle uint16
	Contactor bool
}

// Inputs is everything the state machine observes at the start of a tick.
type Inputs struct {
	Now              time.Time
	CPResistance     uint32
	CPInvalid        uint8
	ContactorError   bool
	JumperConfigured bool
	// DutyCycle is the duty cycle currently on the CP line.
	DutyCycle uint16
	// ContactorOn is the current relay output.
	ContactorOn bool
}

// Transition describes a state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Limits is the view of the current arbiter the state machine needs.
type Limits interface {
	MaxCurrent() uint32
	Managed() (bool, uint32)
	Autostart() bool
	InvalidateManaged()
	HandleDisconnect()
}

// Button is the view of the button/key-switch collaborator.
type Button interface {
	WasPressed() bool
	Held() bool
	Latch()
	Reset() bool
}

// LED is the visual indicator.
type LED interface {
	OnWithTimeout()
	Off()
	Blink(code int)
	Breathe()
}
