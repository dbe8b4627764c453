// Package contactor owns the only code path that switches the contactor
// relay. It forwards the CP duty cycle and delays a switch-off until the
// vehicle stopped drawing current, bounded by the response window of
// IEC 61851-1 (table A.6, sequence 10.1).
package contactor

import (
	"fmt"
	"time"

	"github.com/sweeney/evse-controller/internal/hal"
	"github.com/sweeney/evse-controller/internal/iec61851"
)

// TurnOffTimeout is how long the vehicle gets to stop drawing current
// before the contactor opens under load.
const TurnOffTimeout = 3 * time.Second

// Quarantine applied around switching events, in samples.
const (
	ADCInvalidOnSwitch   = 4
	CheckInvalidOnSwitch = 5
	CPInvalidOnPWMChange = 2
)

// Guard applies output intents to the PWM and relay.
// Not safe for concurrent use; it is owned by the tick context.
type Guard struct {
	pwm   hal.PWM
	relay hal.Relay
	adc   hal.ADC
	check hal.ContactorCheck

	turnOffPending bool
	turnOffSince   time.Time
}

// NewGuard creates a guard without a pending switch-off.
func NewGuard(pwm hal.PWM, relay hal.Relay, adc hal.ADC, check hal.ContactorCheck) *Guard {
	return &Guard{pwm: pwm, relay: relay, adc: adc, check: check}
}

// Apply forwards the duty cycle and switches the relay to match contactor,
// unless a switch-off has to wait for the vehicle. cpOhm is the CP/PE
// resistance the tick classified on. It returns true if the relay was
// switched.
func (g *Guard) Apply(now time.Time, cpOhm uint32, dutyCycle uint16, contactor bool) (bool, error) {
	if err := g.setDutyCycle(dutyCycle); err != nil {
		return false, err
	}

	if g.relay.On() == contactor {
		g.turnOffPending = false
		return false, nil
	}

	// The duty cycle asks the vehicle to stop; if it is still asserting
	// "charging" (resistance at or below B) wait for it to release so the
	// contactor is not opened under load.
	stopRequested := dutyCycle == 0 || dutyCycle == iec61851.NoChargeDutyCycle
	if !contactor && stopRequested && cpOhm <= iec61851.CPResistanceStateB {
		if !g.turnOffPending {
			g.turnOffPending = true
			g.turnOffSince = now
			return false, nil
		}
		if now.Sub(g.turnOffSince) < TurnOffTimeout {
			return false, nil
		}
		// No response in time: open anyway
	}
	g.turnOffPending = false

	if err := g.switchRelay(contactor); err != nil {
		return false, err
	}
	return true, nil
}

// EmergencyOff opens the contactor immediately, bypassing the guard.
func (g *Guard) EmergencyOff() error {
	g.turnOffPending = false
	if !g.relay.On() {
		return nil
	}
	return g.switchRelay(false)
}

// TurnOffPending reports an in-progress switch-off and when it started.
func (g *Guard) TurnOffPending() (bool, time.Time) {
	return g.turnOffPending, g.turnOffSince
}

func (g *Guard) setDutyCycle(duty uint16) error {
	if g.pwm.DutyCycle() == duty {
		return nil
	}
	// Skip CP samples taken while the signal settles
	g.adc.RaiseCPInvalid(CPInvalidOnPWMChange)
	if err := g.pwm.SetDutyCycle(duty); err != nil {
		return fmt.Errorf("set cp duty cycle: %w", err)
	}
	return nil
}

func (g *Guard) switchRelay(on bool) error {
	// Switching causes an EMI spike: ignore measurements and the contactor
	// check for a while.
	g.adc.RaiseCPInvalid(ADCInvalidOnSwitch)
	g.adc.RaisePPInvalid(ADCInvalidOnSwitch)
	g.check.RaiseInvalid(CheckInvalidOnSwitch)

	if err := g.relay.Set(on); err != nil {
		return fmt.Errorf("switch contactor: %w", err)
	}
	return nil
}
