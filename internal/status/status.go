// Package status provides a thread-safe status tracker for the evse-controller daemon.
// It is read by the HTTP handlers and the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/evse-controller/internal/evse"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	TopicPrefix string
	HTTPAddr    string
}

// Counts are totals since the daemon started.
type Counts struct {
	Transitions int
	Sessions    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	EVSE          evse.Status
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// ChargingTime returns the duration of the running session, zero if none.
func (s Snapshot) ChargingTime() time.Duration {
	if s.EVSE.ChargingSince.IsZero() {
		return 0
	}
	return s.Now.Sub(s.EVSE.ChargingSince)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu          sync.RWMutex
	snap        Snapshot
	lastSession string
	now         func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update stores the controller status. Called from runLoop on every tick.
func (t *Tracker) Update(st evse.Status) {
	t.mu.Lock()
	t.snap.EVSE = st
	t.mu.Unlock()
}

// RecordEvents counts transitions and charging sessions.
func (t *Tracker) RecordEvents(events []evse.Event) {
	t.mu.Lock()
	for _, ev := range events {
		t.snap.Counts.Transitions++
		if ev.Session != "" && ev.Session != t.lastSession {
			t.snap.Counts.Sessions++
			t.lastSession = ev.Session
		}
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBuffered sets the number of messages held back while the broker is
// unreachable.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
