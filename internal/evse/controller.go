package evse

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/evse-controller/internal/button"
	"github.com/sweeney/evse-controller/internal/contactor"
	"github.com/sweeney/evse-controller/internal/hal"
	"github.com/sweeney/evse-controller/internal/iec61851"
	"github.com/sweeney/evse-controller/internal/slot"
	"github.com/sweeney/evse-controller/internal/storage"
)

// Controller is the EVSE core. All methods are safe for concurrent use;
// they are serialized internally.
type Controller struct {
	mu sync.Mutex

	hw   Hardware
	opts Options

	arbiter *slot.Arbiter
	button  *button.Button
	machine *iec61851.Machine
	guard   *contactor.Guard

	config          storage.Config
	calibration     storage.Calibration
	userCalibration storage.UserCalibration
	softwareCurrent uint32

	bootTime time.Time
	started  bool

	calibrating      bool
	calibrationError bool

	factoryResetPending bool
	factoryResetAt      time.Time

	// Zero until the first host command arms the watchdog
	lastCommunication time.Time

	session string
	events  []Event
}

// New loads the persisted records and builds the controller. Missing or
// corrupt records fall back to defaults; only storage I/O errors fail.
func New(hw Hardware, opts Options, now time.Time) (*Controller, error) {
	if opts.SoftwareCurrent == 0 {
		opts.SoftwareCurrent = MinSoftwareCurrent
	}

	c := &Controller{
		hw:              hw,
		opts:            opts,
		softwareCurrent: opts.SoftwareCurrent,
		bootTime:        now,
	}

	if err := c.loadRecords(); err != nil {
		return nil, err
	}

	c.arbiter = slot.NewArbiter(c.config.SlotDefaults, c.incomingCurrent(), hw.ADC.Read().PP)
	c.button = button.New(opts.ButtonDebounce)
	c.machine = iec61851.NewMachine(c.arbiter, c.button, hw.LED, now)
	c.machine.OnTransition(c.onTransition)
	c.guard = contactor.NewGuard(hw.PWM, hw.Relay, hw.ADC, hw.Check)

	log.Printf("evse: jumper=%s incoming=%dmA managed=%v boost=%v startup_delay=%v",
		opts.Jumper, c.incomingCurrent(), c.config.LegacyManaged, c.config.BoostMode, opts.StartupDelay)
	return c, nil
}

func (c *Controller) loadRecords() error {
	cal, ok, err := storage.LoadCalibration(c.hw.Store)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("evse: no calibration record, using defaults mul=%d div=%d diff=%d", cal.Mul, cal.Div, cal.DiffVoltage)
	}
	c.calibration = cal

	user, ok, err := storage.LoadUserCalibration(c.hw.Store)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("evse: no user calibration record")
	}
	c.userCalibration = user

	cfg, st, err := storage.LoadConfig(c.hw.Store)
	if err != nil {
		return err
	}
	if !st.Base || !st.Boost || !st.SlotDefaults || !st.ExternalControl {
		log.Printf("evse: config record incomplete (base=%v boost=%v slots=%v external=%v), defaults applied",
			st.Base, st.Boost, st.SlotDefaults, st.ExternalControl)
	}
	c.config = cfg
	return nil
}

func (c *Controller) incomingCurrent() uint32 {
	return c.opts.Jumper.Current(c.softwareCurrent)
}

// Tick runs one control cycle and returns the state transitions it caused.
// A wrapped ErrRestart means the process must restart.
func (c *Controller) Tick(now time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Residual current monitor calibrates after power-up
	if !c.started {
		if now.Sub(c.bootTime) < c.opts.StartupDelay {
			return nil, nil
		}
		c.started = true
		c.hw.LED.OnWithTimeout()
		log.Printf("evse: startup delay elapsed, controller active")
	}

	if c.factoryResetPending && now.Sub(c.factoryResetAt) >= FactoryResetDelay {
		c.factoryResetPending = false
		if err := storage.EraseConfig(c.hw.Store); err != nil {
			log.Printf("evse: factory reset failed: %v", err)
		} else {
			log.Printf("evse: config erased, restarting")
			return c.drainEvents(), fmt.Errorf("factory reset: %w", ErrRestart)
		}
	}

	// One snapshot per tick for cable limits, classification and the
	// switch-off guard
	adc := c.hw.ADC.Read()

	c.tickButton(now)
	c.arbiter.RecomputeCableLimits(c.incomingCurrent(), adc.PP)

	if err := c.tickContactorCheck(); err != nil {
		log.Printf("evse: %v", err)
	}

	var err error
	switch {
	case c.calibrating:
		// Calibration runs externally; outputs stay as they are
	case c.calibrationError:
		c.hw.LED.Blink(iec61851.BlinkCalibrationError)
		_, err = c.guard.Apply(now, adc.CP, iec61851.NoChargeDutyCycle, false)
	default:
		err = c.tickMachine(now, adc)
	}
	if err != nil {
		log.Printf("evse: apply output: %v", err)
	}

	if err := c.checkWatchdog(now); err != nil {
		return c.drainEvents(), err
	}
	return c.drainEvents(), nil
}

func (c *Controller) tickButton(now time.Time) {
	if c.hw.Button == nil {
		return
	}
	pressed, err := c.hw.Button.Pressed()
	if err != nil {
		log.Printf("evse: button read error: %v", err)
		return
	}
	ev := c.button.Process(pressed, now)
	if ev == nil {
		return
	}
	switch ev.Type {
	case button.EventPress:
		log.Printf("evse: button pressed, charging stopped")
		c.arbiter.ButtonStop()
	case button.EventRelease:
		log.Printf("evse: button released")
		c.arbiter.ButtonStart(c.button.WasPressed())
	}
}

func (c *Controller) tickContactorCheck() error {
	if c.hw.Sense != nil {
		closed, err := c.hw.Sense.Closed()
		if err != nil {
			return fmt.Errorf("contactor sense: %w", err)
		}
		c.hw.Check.Check(c.hw.Relay.On(), closed)
	}
	if !c.hw.Check.Error() || !c.hw.Relay.On() {
		return nil
	}
	log.Printf("evse: contactor check error, emergency off")
	if err := c.guard.EmergencyOff(); err != nil {
		return fmt.Errorf("emergency off: %w", err)
	}
	return nil
}

func (c *Controller) tickMachine(now time.Time, adc hal.Reading) error {
	latched := c.button.WasPressed()

	intent := c.machine.Tick(iec61851.Inputs{
		Now:              now,
		CPResistance:     adc.CP,
		CPInvalid:        adc.CPInvalid,
		ContactorError:   c.hw.Check.Error(),
		JumperConfigured: c.opts.Jumper.Configured(),
		DutyCycle:        c.hw.PWM.DutyCycle(),
		ContactorOn:      c.hw.Relay.On(),
	})

	// The latch was cleared in state A with the button released: the button
	// may start the next session again.
	if latched && !c.button.WasPressed() {
		c.arbiter.ButtonStart(false)
	}

	switched, err := c.guard.Apply(now, adc.CP, intent.DutyCycle, intent.Contactor)
	if switched {
		log.Printf("evse: contactor %s (duty=%d state=%s)", onOff(intent.Contactor), intent.DutyCycle, c.machine.State())
	}
	return err
}

func (c *Controller) onTransition(t iec61851.Transition) {
	ev := Event{
		Timestamp:  t.At,
		From:       t.From,
		To:         t.To,
		MaxCurrent: c.arbiter.MaxCurrent(),
	}

	if t.To == iec61851.StateC && c.session == "" {
		c.session = uuid.NewString()
		log.Printf("evse: charging session %s started", c.session)
	}
	ev.Session = c.session

	if t.To == iec61851.StateA {
		if since := c.machine.ChargingSince(); !since.IsZero() {
			ev.ChargingTime = t.At.Sub(since)
			c.machine.ClearChargingTime()
		}
		if c.session != "" {
			log.Printf("evse: charging session %s ended after %v", c.session, ev.ChargingTime)
		}
		c.session = ""
	}

	log.Printf("evse: state %s -> %s max_current=%dmA", t.From, t.To, ev.MaxCurrent)
	c.events = append(c.events, ev)
}

func (c *Controller) drainEvents() []Event {
	ev := c.events
	c.events = nil
	return ev
}

func (c *Controller) checkWatchdog(now time.Time) error {
	if c.lastCommunication.IsZero() || now.Sub(c.lastCommunication) < WatchdogTimeout {
		return nil
	}
	// Never interrupt a connected vehicle
	if c.machine.State() != iec61851.StateA {
		return nil
	}
	log.Printf("evse: no host communication since %s, restarting", c.lastCommunication.UTC().Format(time.RFC3339))
	return fmt.Errorf("communication watchdog: %w", ErrRestart)
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	managed, managedMA := c.arbiter.Managed()
	pending, _ := c.guard.TurnOffPending()
	adc := c.hw.ADC.Read()
	return Status{
		State:                 c.machine.State(),
		LastStateChange:       c.machine.LastStateChange(),
		DutyCycle:             c.hw.PWM.DutyCycle(),
		Contactor:             c.hw.Relay.On(),
		ContactorError:        c.hw.Check.Error(),
		TurnOffPending:        pending,
		MaxCurrent:            c.arbiter.MaxCurrent(),
		CPResistance:          adc.CP,
		PPResistance:          adc.PP,
		ADCSamples:            adc.Samples,
		Jumper:                c.opts.Jumper,
		SoftwareCurrent:       c.softwareCurrent,
		Managed:               managed,
		ManagedCurrent:        managedMA,
		Autostart:             c.arbiter.Autostart(),
		BoostMode:             c.config.BoostMode,
		ButtonPressed:         c.button.Held(),
		Slots:                 c.arbiter.Slots(),
		Session:               c.session,
		ChargingSince:         c.machine.ChargingSince(),
		Started:               c.started,
		Calibrating:           c.calibrating,
		CalibrationError:      c.calibrationError,
		UserCalibrationActive: c.userCalibration.Active,
		Calibration:           c.activeCalibration(),
		FactoryResetPending:   c.factoryResetPending,
		LastCommunication:     c.lastCommunication,
	}
}

func (c *Controller) activeCalibration() storage.Calibration {
	if c.userCalibration.Active {
		return c.userCalibration.Calibration
	}
	return c.calibration
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
