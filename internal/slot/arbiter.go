package slot

// Arbiter holds the slot array and reduces it to one maximum current.
// Not safe for concurrent use; it is owned by the tick context.
type Arbiter struct {
	slots    [Num]Slot
	defaults Defaults
}

// NewArbiter creates an arbiter with the cable slots computed from the
// incoming rating and PP resistance and all other slots armed from defaults.
func NewArbiter(defaults Defaults, incomingMA, ppOhm uint32) *Arbiter {
	a := &Arbiter{defaults: defaults}
	a.slots[IncomingCable] = Slot{MaxCurrent: incomingMA, Active: true}
	a.slots[OutgoingCable] = Slot{MaxCurrent: CurrentFromPP(ppOhm), Active: true}
	a.ApplyDefaults()
	return a
}

// ApplyDefaults re-arms slots 2..Num-1 from their defaults.
func (a *Arbiter) ApplyDefaults() {
	for i, d := range a.defaults {
		a.slots[i+2] = d
	}
}

// RecomputeCableLimits refreshes the two cable rating slots. Nothing else is
// touched, so calling it every tick is safe.
func (a *Arbiter) RecomputeCableLimits(incomingMA, ppOhm uint32) {
	a.slots[IncomingCable].MaxCurrent = incomingMA
	a.slots[OutgoingCable].MaxCurrent = CurrentFromPP(ppOhm)
}

// MaxCurrent returns the minimum limit over all active slots, or 0 if no
// slot is active.
func (a *Arbiter) MaxCurrent() uint32 {
	var (
		limit uint32
		found bool
	)
	for _, s := range a.slots {
		if !s.Active {
			continue
		}
		if !found || s.MaxCurrent < limit {
			limit = s.MaxCurrent
			found = true
		}
	}
	return limit
}

// HandleDisconnect zeroes every slot marked clear-on-disconnect.
func (a *Arbiter) HandleDisconnect() {
	for i := range a.slots {
		if a.slots[i].ClearOnDisconnect {
			a.slots[i].MaxCurrent = 0
		}
	}
}

// ButtonStop blocks charging through the button slot.
func (a *Arbiter) ButtonStop() {
	a.slots[Button].MaxCurrent = 0
}

// ButtonStart releases the button slot unless autostart is disabled or the
// button was pressed since the last full disconnect.
func (a *Arbiter) ButtonStart(pressedSinceDisconnect bool) {
	if a.slots[Button].ClearOnDisconnect || pressedSinceDisconnect {
		return
	}
	a.slots[Button].MaxCurrent = ButtonStartCurrent
}

// Autostart reports whether a new session may start without an explicit
// start command.
func (a *Arbiter) Autostart() bool {
	return !a.slots[Button].ClearOnDisconnect
}

// Managed reports whether an external load manager controls the current,
// and the current it currently allows.
func (a *Arbiter) Managed() (bool, uint32) {
	s := a.slots[LoadManagement]
	return s.Active, s.MaxCurrent
}

// InvalidateManaged zeroes the load management limit so the manager has to
// authorize current again.
func (a *Arbiter) InvalidateManaged() {
	a.slots[LoadManagement].MaxCurrent = 0
}

// SetCurrent changes only the limit of a configurable slot.
func (a *Arbiter) SetCurrent(slot int, ma uint32) error {
	if _, err := DefaultIndex(slot); err != nil {
		return err
	}
	a.slots[slot].MaxCurrent = ma
	return nil
}

// Set replaces a configurable slot.
func (a *Arbiter) Set(slot int, s Slot) error {
	if _, err := DefaultIndex(slot); err != nil {
		return err
	}
	a.slots[slot] = s
	return nil
}

// Slots returns a copy of the whole slot array.
func (a *Arbiter) Slots() [Num]Slot {
	return a.slots
}

// SetDefault replaces the persisted default of a configurable slot. The
// live slot is not changed until the defaults are applied again.
func (a *Arbiter) SetDefault(slot int, s Slot) error {
	i, err := DefaultIndex(slot)
	if err != nil {
		return err
	}
	a.defaults[i] = s
	return nil
}

// Defaults returns a copy of the default table.
func (a *Arbiter) Defaults() Defaults {
	return a.defaults
}
