package hal

import "sync"

// MismatchLimit is the number of consecutive mismatching checks that latch
// a contactor error.
const MismatchLimit = 3

// ContactorMonitor compares the relay output with the contactor's auxiliary
// contact. Once latched, the error is only cleared by a restart.
type ContactorMonitor struct {
	mu         sync.Mutex
	invalid    uint8
	mismatches int
	err        bool
}

// NewContactorMonitor creates a monitor without error.
func NewContactorMonitor() *ContactorMonitor {
	return &ContactorMonitor{}
}

// Check evaluates one sample. While the invalid counter is non-zero the
// sample is skipped and the counter drains by one.
func (c *ContactorMonitor) Check(relayOn, senseClosed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalid > 0 {
		c.invalid--
		return
	}
	if relayOn == senseClosed {
		c.mismatches = 0
		return
	}
	c.mismatches++
	if c.mismatches >= MismatchLimit {
		c.err = true
	}
}

// Error reports whether a contactor error is latched.
func (c *ContactorMonitor) Error() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RaiseInvalid raises the invalid counter to at least n.
func (c *ContactorMonitor) RaiseInvalid(n uint8) {
	c.mu.Lock()
	c.invalid = max(c.invalid, n)
	c.mu.Unlock()
}

// Invalid returns the number of checks still to be skipped.
func (c *ContactorMonitor) Invalid() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalid
}
