// Package button debounces the button/key-switch input and keeps the
// "pressed since last disconnect" latch.
// This package has NO external dependencies (no GPIO, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package button

import "time"

// State represents the debounced level of the button.
type State string

const (
	StatePressed  State = "PRESSED"
	StateReleased State = "RELEASED"
)

// EventType represents a debounced transition.
type EventType string

const (
	EventPress   EventType = "PRESS"
	EventRelease EventType = "RELEASE"
)

// Event represents a debounced transition to act upon.
type Event struct {
	Timestamp time.Time
	Type      EventType
}

// DefaultDebounce is the debounce duration for mechanical switches.
const DefaultDebounce = 50 * time.Millisecond
