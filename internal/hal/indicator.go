package hal

import (
	"context"
	"log"
	"sync"
	"time"
)

// LEDMode is the logical mode of the indicator.
type LEDMode string

const (
	LEDOff       LEDMode = "OFF"
	LEDOn        LEDMode = "ON"
	LEDStandby   LEDMode = "STANDBY"
	LEDBlinking  LEDMode = "BLINKING"
	LEDBreathing LEDMode = "BREATHING"
)

// DefaultStandbyTimeout is how long OnWithTimeout keeps the LED lit.
const DefaultStandbyTimeout = 15 * time.Minute

// Blink pattern timing.
const (
	blinkHalfPeriod = 200 * time.Millisecond
	blinkPause      = 2 * time.Second
)

// LEDState is a point-in-time view of the indicator.
type LEDState struct {
	Mode  LEDMode
	Code  int
	Since time.Time
}

// Indicator implements LED by tracking the commanded mode. Level renders
// the mode onto a single on/off output.
type Indicator struct {
	mu      sync.Mutex
	state   LEDState
	now     func() time.Time
	standby time.Duration
}

// NewIndicator creates an indicator that starts off.
func NewIndicator(now func() time.Time, standby time.Duration) *Indicator {
	return &Indicator{
		state:   LEDState{Mode: LEDOff, Since: now()},
		now:     now,
		standby: standby,
	}
}

// OnWithTimeout turns the LED on until the standby timeout elapses.
func (i *Indicator) OnWithTimeout() {
	i.set(LEDOn, 0)
}

// Off turns the LED off.
func (i *Indicator) Off() {
	i.set(LEDOff, 0)
}

// Blink shows an error code. Repeating the same code keeps the pattern phase.
func (i *Indicator) Blink(code int) {
	i.set(LEDBlinking, code)
}

// Breathe signals an active charging session.
func (i *Indicator) Breathe() {
	i.set(LEDBreathing, 0)
}

func (i *Indicator) set(mode LEDMode, code int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state.Mode == mode && i.state.Code == code && mode != LEDOn {
		return
	}
	i.state = LEDState{Mode: mode, Code: code, Since: i.now()}
}

// State returns the current state with the standby timeout applied.
func (i *Indicator) State() LEDState {
	i.mu.Lock()
	s := i.state
	i.mu.Unlock()
	if s.Mode == LEDOn && i.standby > 0 && i.now().Sub(s.Since) >= i.standby {
		s.Mode = LEDStandby
	}
	return s
}

// Level returns the output level for the given instant.
func (i *Indicator) Level(now time.Time) bool {
	s := i.State()
	switch s.Mode {
	case LEDOn, LEDBreathing:
		return true
	case LEDBlinking:
		if s.Code <= 0 {
			return false
		}
		blinks := time.Duration(s.Code) * 2 * blinkHalfPeriod
		pos := now.Sub(s.Since) % (blinks + blinkPause)
		if pos >= blinks {
			return false
		}
		return (pos/blinkHalfPeriod)%2 == 0
	default:
		return false
	}
}

// Output is a single digital output line.
type Output interface {
	Set(on bool) error
}

// DriveLED renders the indicator onto out until ctx is cancelled.
func DriveLED(ctx context.Context, ind *Indicator, out Output, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := false
	first := true
	for {
		select {
		case <-ctx.Done():
			if err := out.Set(false); err != nil {
				log.Printf("led: switch off: %v", err)
			}
			return
		case t := <-ticker.C:
			level := ind.Level(t)
			if !first && level == last {
				continue
			}
			if err := out.Set(level); err != nil {
				log.Printf("led: set level: %v", err)
				continue
			}
			last = level
			first = false
		}
	}
}
