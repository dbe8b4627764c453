package iec61851

import "time"

// Machine classifies the connection state once per tick.
// Not safe for concurrent use; it is owned by the tick context.
type Machine struct {
	limits Limits
	button Button
	led    LED

	state           State
	lastStateChange time.Time

	// Start of a resistance spike while waiting for the contactor
	id3Since time.Time
	id3Armed bool

	// Start of the current charging session, zero if not running
	chargingSince time.Time

	onTransition func(Transition)
}

// NewMachine creates a state machine in state A.
func NewMachine(limits Limits, button Button, led LED, now time.Time) *Machine {
	return &Machine{
		limits:          limits,
		button:          button,
		led:             led,
		state:           StateA,
		lastStateChange: now,
	}
}

// OnTransition registers a callback invoked after every state change.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.onTransition = fn
}

// Tick reclassifies the state from the inputs and returns the output to
// apply. The output is recomputed every tick, also when the state is held.
func (m *Machine) Tick(in Inputs) OutputIntent {
	switch {
	case in.ContactorError:
		m.led.Blink(BlinkContactorError)
		m.setState(StateEF, in.Now)
	case !in.JumperConfigured:
		// An unconfigured jumper is never allowed
		m.led.Blink(BlinkJumperUnconfigured)
		m.setState(StateEF, in.Now)
	case m.button.WasPressed():
		m.setState(StateA, in.Now)
		// While the key is still turned to off the LED stays off
		if m.button.Held() {
			m.led.Off()
		}
	case in.CPInvalid > 0:
		// Wait for the measurement to become valid
	default:
		m.classify(in)
	}

	return m.output(in)
}

func (m *Machine) classify(in Inputs) {
	// Some vehicles (first seen on an ID.3) briefly present a very high
	// resistance while engaging their 880 ohm resistor. While the duty cycle
	// offers current but the contactor is still open, such a spike only
	// counts as a disconnect after ID3Debounce.
	id3Mode := in.DutyCycle != NoChargeDutyCycle && !in.ContactorOn
	spike := id3Mode && in.CPResistance > 3*CPResistanceStateA
	if !spike {
		m.id3Armed = false
	}

	r := in.CPResistance
	switch {
	case spike:
		if !m.id3Armed {
			m.id3Armed = true
			m.id3Since = in.Now
		} else if in.Now.Sub(m.id3Since) >= ID3Debounce {
			m.setState(StateA, in.Now)
		}
	case !id3Mode && r > CPResistanceStateA:
		m.setState(StateA, in.Now)
	case r > CPResistanceStateB:
		m.setState(StateB, in.Now)
	case r > CPResistanceStateC:
		// Managed but paused: do not energize
		if managed, ma := m.limits.Managed(); managed && ma == 0 {
			m.setState(StateB, in.Now)
		} else {
			m.setState(StateC, in.Now)
		}
	case r > CPResistanceStateD:
		m.led.Blink(BlinkResistanceError)
		m.setState(StateD, in.Now)
	default:
		m.led.Blink(BlinkResistanceError)
		m.setState(StateEF, in.Now)
	}
}

func (m *Machine) setState(s State, now time.Time) {
	if s == m.state {
		return
	}

	if s == StateC && m.chargingSince.IsZero() {
		m.chargingSince = now
	}

	if s == StateA || s == StateB {
		m.led.OnWithTimeout()
	}

	if s == StateA {
		// Without autostart the next session needs an explicit start
		if !m.limits.Autostart() {
			m.button.Latch()
		}
		if managed, _ := m.limits.Managed(); managed {
			m.limits.InvalidateManaged()
		}
		m.limits.HandleDisconnect()
	}

	t := Transition{From: m.state, To: s, At: now}
	m.state = s
	m.lastStateChange = now

	if m.onTransition != nil {
		m.onTransition(t)
	}
}

func (m *Machine) output(in Inputs) OutputIntent {
	switch m.state {
	case StateA:
		if in.CPResistance > CPResistanceStateA && m.button.Reset() {
			// Button released while in another state: coming back to A
			// turns the LED on again until standby
			m.led.OnWithTimeout()
		}
		return OutputIntent{DutyCycle: NoChargeDutyCycle}
	case StateB:
		return OutputIntent{DutyCycle: DutyCycleForCurrent(m.limits.MaxCurrent())}
	case StateC:
		m.led.Breathe()
		return OutputIntent{DutyCycle: DutyCycleForCurrent(m.limits.MaxCurrent()), Contactor: true}
	default:
		// D is unsupported; D and EF fail safe
		return OutputIntent{DutyCycle: NoChargeDutyCycle}
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// LastStateChange returns the time of the last transition.
func (m *Machine) LastStateChange() time.Time {
	return m.lastStateChange
}

// ChargingSince returns the start of the charging session, zero if none.
func (m *Machine) ChargingSince() time.Time {
	return m.chargingSince
}

// ClearChargingTime stops the charging session timer.
func (m *Machine) ClearChargingTime() {
	m.chargingSince = time.Time{}
}
