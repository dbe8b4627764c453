package button

import "time"

// Button tracks the debounced button state and the press latch.
type Button struct {
	debounceDuration time.Duration

	// Current stable (debounced) state
	stable State
	// Pending state during debounce
	pending State
	// Time when pending state was first observed
	pendingSince time.Time
	// Whether we have established a baseline
	baselined bool

	// Set on every press, cleared by Reset once released in state A
	wasPressed bool
	// Set by Latch on a disconnect without autostart, cleared only by Clear
	stopLatched bool
}

// New creates a button with the given debounce duration.
func New(debounceDuration time.Duration) *Button {
	return &Button{debounceDuration: debounceDuration}
}

// Process takes a new raw sample and returns an event on a debounced
// transition. A baseline established as pressed is reported as a press so a
// key switch turned off at boot blocks charging.
func (b *Button) Process(pressed bool, now time.Time) *Event {
	newState := StateReleased
	if pressed {
		newState = StatePressed
	}

	// First time seeing the input
	if !b.baselined {
		if b.pending == "" || b.pending != newState {
			// Start observing, or restart because the level changed
			b.pending = newState
			b.pendingSince = now
			return nil
		}
		if now.Sub(b.pendingSince) < b.debounceDuration {
			return nil
		}
		b.stable = newState
		b.baselined = true
		b.pending = ""
		if newState == StatePressed {
			return b.emit(EventPress, now)
		}
		return nil
	}

	// Already baselined - detect transitions
	if newState == b.stable {
		// No change from stable state, clear any pending
		b.pending = ""
		return nil
	}

	if b.pending != newState {
		// New pending state
		b.pending = newState
		b.pendingSince = now
		return nil
	}

	// Same pending state, check debounce
	if now.Sub(b.pendingSince) < b.debounceDuration {
		return nil
	}
	b.stable = newState
	b.pending = ""
	if newState == StatePressed {
		return b.emit(EventPress, now)
	}
	return b.emit(EventRelease, now)
}

func (b *Button) emit(t EventType, now time.Time) *Event {
	if t == EventPress {
		b.wasPressed = true
	}
	return &Event{Timestamp: now, Type: t}
}

// State returns the debounced state. Before the baseline is established the
// button counts as released.
func (b *Button) State() State {
	if !b.baselined {
		return StateReleased
	}
	return b.stable
}

// Held reports whether the button is currently pressed (key turned to off).
func (b *Button) Held() bool {
	return b.State() == StatePressed
}

// WasPressed reports whether charging is blocked by the latch: the button
// was pressed since the last Reset, or Latch was called since the last Clear.
func (b *Button) WasPressed() bool {
	return b.wasPressed || b.stopLatched
}

// Latch blocks charging without a physical press, so the next session
// needs an explicit start. Reset does not undo it.
func (b *Button) Latch() {
	b.stopLatched = true
}

// Clear drops both latches (explicit start command).
func (b *Button) Clear() {
	b.wasPressed = false
	b.stopLatched = false
}

// Reset clears the press latch if the button is released. It returns true
// if the press latch was cleared. A latch set by Latch stays.
func (b *Button) Reset() bool {
	if !b.wasPressed || b.State() == StatePressed {
		return false
	}
	b.wasPressed = false
	return true
}
