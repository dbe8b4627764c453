package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inactiveDefaults() Defaults {
	var d Defaults
	for i := range d {
		d[i] = Slot{MaxCurrent: 32000}
	}
	return d
}

func TestMaxCurrentIgnoresInactiveSlots(t *testing.T) {
	a := &Arbiter{}
	a.slots[0] = Slot{MaxCurrent: 6000, Active: true}
	a.slots[1] = Slot{MaxCurrent: 1000, Active: false}
	a.slots[2] = Slot{MaxCurrent: 32000, Active: true}

	assert.Equal(t, uint32(6000), a.MaxCurrent())
}

func TestMaxCurrentNoActiveSlotIsZero(t *testing.T) {
	a := &Arbiter{}
	for i := range a.slots {
		a.slots[i] = Slot{MaxCurrent: 16000}
	}

	assert.Equal(t, uint32(0), a.MaxCurrent())
}

func TestMaxCurrentActiveZeroWins(t *testing.T) {
	a := NewArbiter(inactiveDefaults(), 32000, 100)
	require.NoError(t, a.Set(User, Slot{MaxCurrent: 0, Active: true}))

	assert.Equal(t, uint32(0), a.MaxCurrent())
}

func TestNewArbiterCableSlots(t *testing.T) {
	a := NewArbiter(FactoryDefaults(false), 16000, 500)

	in := a.Slots()[IncomingCable]
	assert.Equal(t, Slot{MaxCurrent: 16000, Active: true}, in)

	out := a.Slots()[OutgoingCable]
	assert.Equal(t, Slot{MaxCurrent: 20000, Active: true}, out)

	assert.Equal(t, uint32(16000), a.MaxCurrent())
}

func TestRecomputeCableLimits(t *testing.T) {
	a := NewArbiter(inactiveDefaults(), 32000, 100)
	assert.Equal(t, uint32(32000), a.MaxCurrent())

	a.RecomputeCableLimits(32000, 1500)
	assert.Equal(t, uint32(13000), a.MaxCurrent())

	a.RecomputeCableLimits(10000, 1500)
	assert.Equal(t, uint32(10000), a.MaxCurrent())

	// Idempotent
	before := a.Slots()
	a.RecomputeCableLimits(10000, 1500)
	assert.Equal(t, before, a.Slots())
}

func TestCurrentFromPP(t *testing.T) {
	tests := []struct {
		ohm  uint32
		want uint32
	}{
		{2200, 13000},
		{1000, 13000},
		{999, 20000},
		{500, 20000},
		{330, 20000},
		{329, 32000},
		{150, 32000},
		{149, 64000},
		{0, 64000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CurrentFromPP(tt.ohm), "ohm=%d", tt.ohm)
	}
}

func TestHandleDisconnectZeroesOnlyClearSlots(t *testing.T) {
	d := inactiveDefaults()
	d[LoadManagement-2] = Slot{MaxCurrent: 16000, Active: true, ClearOnDisconnect: true}
	d[User-2] = Slot{MaxCurrent: 20000, Active: true}
	d[External-2] = Slot{MaxCurrent: 10000, Active: false, ClearOnDisconnect: true}
	a := NewArbiter(d, 32000, 100)

	a.HandleDisconnect()

	lm := a.Slots()[LoadManagement]
	assert.Equal(t, Slot{MaxCurrent: 0, Active: true, ClearOnDisconnect: true}, lm)
	ext := a.Slots()[External]
	assert.Equal(t, Slot{MaxCurrent: 0, Active: false, ClearOnDisconnect: true}, ext)
	user := a.Slots()[User]
	assert.Equal(t, Slot{MaxCurrent: 20000, Active: true}, user)
	in := a.Slots()[IncomingCable]
	assert.Equal(t, uint32(32000), in.MaxCurrent)

	after := a.Slots()
	a.HandleDisconnect()
	assert.Equal(t, after, a.Slots(), "repeated disconnect must not change anything")
}

func TestButtonStopStart(t *testing.T) {
	a := NewArbiter(FactoryDefaults(false), 32000, 100)

	a.ButtonStop()
	b := a.Slots()[Button]
	assert.Equal(t, uint32(0), b.MaxCurrent)
	assert.Equal(t, uint32(0), a.MaxCurrent())

	a.ButtonStart(true)
	b = a.Slots()[Button]
	assert.Equal(t, uint32(0), b.MaxCurrent, "latched press must block start")

	a.ButtonStart(false)
	b = a.Slots()[Button]
	assert.Equal(t, uint32(ButtonStartCurrent), b.MaxCurrent)
}

func TestButtonStartAutostartDisabled(t *testing.T) {
	d := FactoryDefaults(false)
	d[Button-2].ClearOnDisconnect = true
	a := NewArbiter(d, 32000, 100)
	assert.False(t, a.Autostart())

	a.ButtonStop()
	a.ButtonStart(false)

	b := a.Slots()[Button]
	assert.Equal(t, uint32(0), b.MaxCurrent)
}

func TestFactoryDefaults(t *testing.T) {
	d := FactoryDefaults(true)
	assert.Equal(t, Slot{MaxCurrent: 32000, Active: true}, d[Button-2])
	assert.Equal(t, Slot{MaxCurrent: 0, Active: true, ClearOnDisconnect: true}, d[LoadManagement-2])
	assert.Equal(t, Slot{MaxCurrent: 32000}, d[External-2])

	d = FactoryDefaults(false)
	assert.Equal(t, Slot{}, d[LoadManagement-2])
}

func TestManaged(t *testing.T) {
	a := NewArbiter(FactoryDefaults(true), 32000, 100)
	managed, ma := a.Managed()
	assert.True(t, managed)
	assert.Equal(t, uint32(0), ma)

	require.NoError(t, a.SetCurrent(LoadManagement, 12000))
	_, ma = a.Managed()
	assert.Equal(t, uint32(12000), ma)
}

func TestSetRejectsReservedAndOutOfRange(t *testing.T) {
	a := NewArbiter(FactoryDefaults(false), 32000, 100)

	assert.ErrorIs(t, a.Set(IncomingCable, Slot{}), ErrReservedSlot)
	assert.ErrorIs(t, a.SetCurrent(OutgoingCable, 0), ErrReservedSlot)
	assert.ErrorIs(t, a.Set(Num, Slot{}), ErrSlotIndex)
	assert.ErrorIs(t, a.SetDefault(-1, Slot{}), ErrSlotIndex)
}

func TestSetDefaultAppliesOnlyOnReArm(t *testing.T) {
	a := NewArbiter(FactoryDefaults(false), 32000, 100)
	require.NoError(t, a.SetDefault(User, Slot{MaxCurrent: 8000, Active: true}))

	u := a.Slots()[User]
	assert.False(t, u.Active)
	assert.Equal(t, Slot{MaxCurrent: 8000, Active: true}, a.Defaults()[User-2])

	a.ApplyDefaults()
	u = a.Slots()[User]
	assert.Equal(t, Slot{MaxCurrent: 8000, Active: true}, u)
	assert.Equal(t, uint32(8000), a.MaxCurrent())
}
