package button

import (
	"testing"
	"time"
)

var base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func setupBaselinedButton(t *testing.T, pressed bool) *Button {
	t.Helper()
	b := New(50 * time.Millisecond)
	b.Process(pressed, at(0))
	b.Process(pressed, at(50))
	if !b.baselined {
		t.Fatal("button should be baselined")
	}
	return b
}

func TestNewButton(t *testing.T) {
	b := New(50 * time.Millisecond)
	if b.baselined {
		t.Error("new button should not be baselined")
	}
	if b.State() != StateReleased {
		t.Errorf("State: got %s, want RELEASED", b.State())
	}
	if b.WasPressed() {
		t.Error("new button should not be latched")
	}
}

func TestBaselineReleasedEmitsNothing(t *testing.T) {
	b := New(50 * time.Millisecond)

	if e := b.Process(false, at(0)); e != nil {
		t.Errorf("unexpected event %v", e.Type)
	}
	if e := b.Process(false, at(49)); e != nil {
		t.Errorf("unexpected event %v", e.Type)
	}
	if b.baselined {
		t.Error("should not be baselined before debounce period")
	}
	if e := b.Process(false, at(50)); e != nil {
		t.Errorf("unexpected event %v", e.Type)
	}
	if !b.baselined {
		t.Error("should be baselined after debounce period")
	}
}

func TestBaselinePressedEmitsPress(t *testing.T) {
	b := New(50 * time.Millisecond)
	b.Process(true, at(0))

	e := b.Process(true, at(50))
	if e == nil || e.Type != EventPress {
		t.Fatalf("expected PRESS at baseline, got %v", e)
	}
	if !b.WasPressed() {
		t.Error("baseline press must set the latch")
	}
}

func TestBaselineRestartsOnChange(t *testing.T) {
	b := New(50 * time.Millisecond)
	b.Process(true, at(0))
	b.Process(false, at(30))
	b.Process(false, at(60))
	if b.baselined {
		t.Fatal("baseline should restart when the level changes")
	}
	b.Process(false, at(80))
	if !b.baselined {
		t.Fatal("should be baselined 50ms after the change")
	}
	if b.State() != StateReleased {
		t.Errorf("State: got %s, want RELEASED", b.State())
	}
}

func TestPressAndRelease(t *testing.T) {
	b := setupBaselinedButton(t, false)

	if e := b.Process(true, at(100)); e != nil {
		t.Fatalf("no event expected before debounce, got %v", e.Type)
	}
	e := b.Process(true, at(150))
	if e == nil || e.Type != EventPress {
		t.Fatalf("expected PRESS, got %v", e)
	}
	if !e.Timestamp.Equal(at(150)) {
		t.Errorf("Timestamp: got %v, want %v", e.Timestamp, at(150))
	}
	if b.State() != StatePressed {
		t.Errorf("State: got %s, want PRESSED", b.State())
	}

	b.Process(false, at(200))
	e = b.Process(false, at(250))
	if e == nil || e.Type != EventRelease {
		t.Fatalf("expected RELEASE, got %v", e)
	}
	if !b.WasPressed() {
		t.Error("release must not clear the latch")
	}
}

func TestGlitchIgnored(t *testing.T) {
	b := setupBaselinedButton(t, false)

	b.Process(true, at(100))
	b.Process(false, at(120))
	if e := b.Process(true, at(160)); e != nil {
		t.Fatalf("glitch produced event %v", e.Type)
	}
	if b.State() != StateReleased {
		t.Errorf("State: got %s, want RELEASED", b.State())
	}
}

func TestResetOnlyWhenReleased(t *testing.T) {
	b := setupBaselinedButton(t, true)
	if !b.WasPressed() {
		t.Fatal("expected latch")
	}

	if b.Reset() {
		t.Error("Reset must not clear the latch while pressed")
	}

	b.Process(false, at(100))
	b.Process(false, at(150))
	if !b.Reset() {
		t.Error("Reset should clear the latch when released")
	}
	if b.WasPressed() {
		t.Error("latch should be cleared")
	}
	if b.Reset() {
		t.Error("second Reset should report nothing cleared")
	}
}

func TestLatchAndClear(t *testing.T) {
	b := setupBaselinedButton(t, false)
	b.Latch()
	if !b.WasPressed() {
		t.Error("Latch should set the latch")
	}
	b.Clear()
	if b.WasPressed() {
		t.Error("Clear should drop the latch")
	}
}

func TestResetKeepsStopLatch(t *testing.T) {
	b := setupBaselinedButton(t, false)
	b.Latch()
	if b.Reset() {
		t.Error("Reset must not clear a latch set without a press")
	}
	if !b.WasPressed() {
		t.Fatal("stop latch should survive Reset")
	}

	// A press and release on top of the stop latch
	b.Process(true, at(100))
	b.Process(true, at(150))
	b.Process(false, at(200))
	b.Process(false, at(250))
	if !b.Reset() {
		t.Error("Reset should clear the press latch")
	}
	if !b.WasPressed() {
		t.Error("stop latch should still block after the press latch is cleared")
	}

	b.Clear()
	if b.WasPressed() {
		t.Error("Clear should drop the stop latch")
	}
}
