package hal

import "errors"

// FakePWM records duty cycle writes.
type FakePWM struct {
	Duty   uint16
	Writes []uint16
	SetErr error
}

// NewFakePWM creates a FakePWM at constant high.
func NewFakePWM() *FakePWM {
	return &FakePWM{Duty: MaxDutyCycle}
}

// SetDutyCycle records the write.
func (f *FakePWM) SetDutyCycle(permille uint16) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	f.Duty = permille
	f.Writes = append(f.Writes, permille)
	return nil
}

// DutyCycle returns the last duty cycle written.
func (f *FakePWM) DutyCycle() uint16 {
	return f.Duty
}

// FakeRelay records relay switching.
type FakeRelay struct {
	State    bool
	Switches int
	SetErr   error
}

// Set records the new state.
func (f *FakeRelay) Set(on bool) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	if on != f.State {
		f.Switches++
	}
	f.State = on
	return nil
}

// On returns the recorded state.
func (f *FakeRelay) On() bool {
	return f.State
}

// Close is a no-op.
func (f *FakeRelay) Close() error {
	return nil
}

// FakeButton is a test double that returns scripted button levels.
type FakeButton struct {
	// Samples contains scripted levels to return.
	// Each call to Pressed() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples ...bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Set replaces the script with a single repeated level.
func (f *FakeButton) Set(pressed bool) {
	f.Samples = []bool{pressed}
	f.index = 0
}

// FakeSense follows a relay, optionally stuck at a fixed level.
type FakeSense struct {
	Relay *FakeRelay
	Stuck *bool
}

// Closed returns the stuck level or mirrors the relay.
func (f *FakeSense) Closed() (bool, error) {
	if f.Stuck != nil {
		return *f.Stuck, nil
	}
	if f.Relay == nil {
		return false, nil
	}
	return f.Relay.State, nil
}

// FakeContactorCheck is a settable ContactorCheck.
type FakeContactorCheck struct {
	Err     bool
	Invalid uint8
}

// Error returns the configured error flag.
func (f *FakeContactorCheck) Error() bool {
	return f.Err
}

// RaiseInvalid raises the invalid counter to at least n.
func (f *FakeContactorCheck) RaiseInvalid(n uint8) {
	f.Invalid = max(f.Invalid, n)
}

// FakeLED records the commanded LED mode.
type FakeLED struct {
	Mode     LEDMode
	Code     int
	Commands []LEDMode
}

// OnWithTimeout records an on command.
func (f *FakeLED) OnWithTimeout() { f.record(LEDOn, 0) }

// Off records an off command.
func (f *FakeLED) Off() { f.record(LEDOff, 0) }

// Blink records a blink command.
func (f *FakeLED) Blink(code int) { f.record(LEDBlinking, code) }

// Breathe records a breathe command.
func (f *FakeLED) Breathe() { f.record(LEDBreathing, 0) }

func (f *FakeLED) record(mode LEDMode, code int) {
	f.Mode = mode
	f.Code = code
	f.Commands = append(f.Commands, mode)
}
