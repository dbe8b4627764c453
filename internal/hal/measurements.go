package hal

import "sync"

// Measurements is the shared store between the ADC feed and the tick.
// Samples arriving while an invalid counter is non-zero are discarded and
// drain the counter by one.
type Measurements struct {
	mu        sync.Mutex
	cp        uint32
	pp        uint32
	cpInvalid uint8
	ppInvalid uint8
	samples   uint64
}

// NewMeasurements creates a store with initial readings. Initial readings
// are considered valid.
func NewMeasurements(cpOhm, ppOhm uint32) *Measurements {
	return &Measurements{cp: cpOhm, pp: ppOhm}
}

// Update records a new sample pair.
func (m *Measurements) Update(cpOhm, ppOhm uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples++
	if m.cpInvalid > 0 {
		m.cpInvalid--
	} else {
		m.cp = cpOhm
	}
	if m.ppInvalid > 0 {
		m.ppInvalid--
	} else {
		m.pp = ppOhm
	}
}

// Reading is one consistent view of the store.
type Reading struct {
	CP        uint32 // last valid CP/PE resistance in ohms
	PP        uint32 // last valid PP/PE resistance in ohms
	CPInvalid uint8  // CP samples still to be discarded
	PPInvalid uint8
	Samples   uint64 // samples received since start
}

// Read returns all readings and counters taken under one lock, so a sample
// arriving concurrently is seen either entirely or not at all.
func (m *Measurements) Read() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Reading{
		CP:        m.cp,
		PP:        m.pp,
		CPInvalid: m.cpInvalid,
		PPInvalid: m.ppInvalid,
		Samples:   m.samples,
	}
}

// RaiseCPInvalid raises the CP invalid counter to at least n.
func (m *Measurements) RaiseCPInvalid(n uint8) {
	m.mu.Lock()
	m.cpInvalid = max(m.cpInvalid, n)
	m.mu.Unlock()
}

// RaisePPInvalid raises the PP invalid counter to at least n.
func (m *Measurements) RaisePPInvalid(n uint8) {
	m.mu.Lock()
	m.ppInvalid = max(m.ppInvalid, n)
	m.mu.Unlock()
}
