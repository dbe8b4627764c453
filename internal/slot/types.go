// Package slot reduces independently owned current limits ("slots") to the
// single maximum charging current the station may offer.
// This package has NO external dependencies; every writer of a slot goes
// through the Arbiter methods.
package slot

import "errors"

// Slot indices. The first two are cable ratings owned by the arbiter itself.
const (
	IncomingCable  = 0
	OutgoingCable  = 1
	ShutdownInput  = 2
	GPInput        = 3
	Button         = 4
	Global         = 5
	User           = 6
	LoadManagement = 7
	External       = 8
)

// Num is the number of slots. Slots 2..Num-1 carry persisted defaults.
const (
	Num         = 20
	NumDefaults = Num - 2
)

// ButtonStartCurrent is the limit the button slot is released to.
const ButtonStartCurrent = 32000

// Slot errors.
var (
	ErrSlotIndex    = errors.New("slot index out of range")
	ErrReservedSlot = errors.New("slot is reserved for cable ratings")
)

// Slot is one current limit in milliamps.
type Slot struct {
	MaxCurrent        uint32
	Active            bool
	ClearOnDisconnect bool
}

// Defaults holds the persisted defaults for slots 2..Num-1, indexed from 0.
type Defaults [NumDefaults]Slot

// DefaultIndex converts a slot index into its index in Defaults.
func DefaultIndex(slot int) (int, error) {
	if slot < 0 || slot >= Num {
		return 0, ErrSlotIndex
	}
	if slot < 2 {
		return 0, ErrReservedSlot
	}
	return slot - 2, nil
}

// FactoryDefaults returns the default table used when no valid slot defaults
// are persisted: the button slot is active and released, load management
// follows the legacy managed flag, everything else is inactive.
func FactoryDefaults(legacyManaged bool) Defaults {
	var d Defaults
	for i := range d {
		d[i] = Slot{MaxCurrent: 32000}
	}
	d[Button-2] = Slot{MaxCurrent: 32000, Active: true}
	d[LoadManagement-2] = Slot{MaxCurrent: 0, Active: legacyManaged, ClearOnDisconnect: legacyManaged}
	return d
}

// ExternalDefault is the default applied to the external control slot the
// first time a config record without external-control handling is loaded.
var ExternalDefault = Slot{MaxCurrent: 32000}

// PP resistance thresholds in ohms, inclusive lower bounds.
const (
	PPResistance13A = 1000
	PPResistance20A = 330
	PPResistance32A = 150
)

// CurrentFromPP returns the outgoing cable rating in milliamps for a PP/PE
// resistance in ohms.
func CurrentFromPP(ohm uint32) uint32 {
	switch {
	case ohm >= PPResistance13A:
		return 13000
	case ohm >= PPResistance20A:
		return 20000
	case ohm >= PPResistance32A:
		return 32000
	default:
		return 64000
	}
}
