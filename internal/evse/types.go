// Package evse ties the current arbiter, the IEC 61851 state machine and the
// contactor guard into one controller driven by a periodic Tick. It owns
// every piece of controller state; host commands and the tick are
// serialized so a command is observed atomically by the next tick.
package evse

import (
	"errors"
	"time"

	"github.com/sweeney/evse-controller/internal/hal"
	"github.com/sweeney/evse-controller/internal/iec61851"
	"github.com/sweeney/evse-controller/internal/slot"
	"github.com/sweeney/evse-controller/internal/storage"
)

// ErrRestart is returned by Tick when the controller must be restarted
// (factory reset or communication watchdog). The caller exits and lets the
// supervisor start a fresh process.
var ErrRestart = errors.New("restart required")

// Command errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrButtonHeld     = errors.New("button is pressed")
	ErrNotSoftware    = errors.New("jumper is not set to software")
	ErrCurrentRange   = errors.New("current out of range")
	ErrMissingSlot    = errors.New("slot missing")
)

// Timing of the supplementary features.
const (
	DefaultStartupDelay = 12 * time.Second
	FactoryResetDelay   = 500 * time.Millisecond
	WatchdogTimeout     = 5 * time.Minute
)

// Software current limits in mA.
const (
	MinSoftwareCurrent = 6000
	MaxSoftwareCurrent = 32000
)

// ContactorMonitor is the contactor check as driven by the controller: it is
// fed one relay/sense sample per tick.
type ContactorMonitor interface {
	hal.ContactorCheck
	Check(relayOn, senseClosed bool)
}

// Hardware bundles the peripherals. Sense and Button may be nil on boards
// without an auxiliary contact or button.
type Hardware struct {
	PWM    hal.PWM
	Relay  hal.Relay
	ADC    hal.ADC
	Check  ContactorMonitor
	Sense  hal.Sense
	Button hal.ButtonInput
	LED    hal.LED
	Store  storage.PageStore
}

// Options are the boot-time settings.
type Options struct {
	Jumper          hal.Jumper
	SoftwareCurrent uint32
	StartupDelay    time.Duration
	ButtonDebounce  time.Duration
}

// Event is a state transition as reported to the host.
type Event struct {
	Timestamp  time.Time
	From       iec61851.State
	To         iec61851.State
	Session    string
	MaxCurrent uint32
	// ChargingTime is set on the transition that ends a session.
	ChargingTime time.Duration
}

// Status is a point-in-time view of the controller.
type Status struct {
	State           iec61851.State
	LastStateChange time.Time
	DutyCycle       uint16
	Contactor       bool
	ContactorError  bool
	TurnOffPending  bool
	MaxCurrent      uint32
	CPResistance    uint32
	PPResistance    uint32
	ADCSamples      uint64
	Jumper          hal.Jumper
	SoftwareCurrent uint32
	Managed         bool
	ManagedCurrent  uint32
	Autostart       bool
	BoostMode       bool
	ButtonPressed   bool
	Slots           [slot.Num]slot.Slot
	Session         string
	ChargingSince   time.Time

	Started               bool
	Calibrating           bool
	CalibrationError      bool
	UserCalibrationActive bool
	// Calibration is the calibration in effect: the user calibration while
	// active, the factory calibration otherwise.
	Calibration         storage.Calibration
	FactoryResetPending bool
	LastCommunication   time.Time
}

// Command names accepted by Handle.
const (
	CmdPing               = "ping"
	CmdStartCharging      = "start_charging"
	CmdStopCharging       = "stop_charging"
	CmdSetSlot            = "set_slot"
	CmdSetSlotDefault     = "set_slot_default"
	CmdSetSoftwareCurrent = "set_software_current"
	CmdSetBoost           = "set_boost"
	CmdSetManaged         = "set_managed"
	CmdClearChargingTime  = "clear_charging_time"
	CmdFactoryReset       = "factory_reset"
	CmdCalibration        = "calibration"
	CmdUserCalibration    = "set_user_calibration"
)

// Command is a host command as received over MQTT.
type Command struct {
	Name              string `json:"command"`
	Slot              *int   `json:"slot,omitempty"`
	CurrentMA         uint32 `json:"current_ma,omitempty"`
	Active            bool   `json:"active,omitempty"`
	ClearOnDisconnect bool   `json:"clear_on_disconnect,omitempty"`
	Enabled           bool   `json:"enabled,omitempty"`
	// Error ends a calibration as failed.
	Error bool `json:"error,omitempty"`
	// Calibration carries the values for set_user_calibration.
	Calibration *storage.Calibration `json:"calibration,omitempty"`
}
