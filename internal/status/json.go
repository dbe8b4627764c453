package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/evse-controller/internal/iec61851"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	EVSE          EVSEJSON     `json:"evse"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// EVSEJSON is the JSON representation of the controller state.
type EVSEJSON struct {
	State               string     `json:"state"`
	LastStateChange     string     `json:"last_state_change"`
	DutyCycle           uint16     `json:"duty_cycle"`
	Contactor           bool       `json:"contactor"`
	ContactorError      bool       `json:"contactor_error"`
	TurnOffPending      bool       `json:"turn_off_pending"`
	MaxCurrentMA        uint32     `json:"max_current_ma"`
	CPResistance        uint32     `json:"cp_pe_ohm"`
	PPResistance        uint32     `json:"pp_pe_ohm"`
	ADCSamples          uint64     `json:"adc_samples"`
	Jumper              string     `json:"jumper"`
	Managed             bool       `json:"managed"`
	ManagedCurrentMA    uint32     `json:"managed_current_ma"`
	Autostart           bool       `json:"autostart"`
	Boost               bool       `json:"boost"`
	ButtonPressed       bool       `json:"button_pressed"`
	Session             string     `json:"session,omitempty"`
	ChargingSeconds     int64      `json:"charging_seconds"`
	Calibrating         bool       `json:"calibrating"`
	CalibrationError    bool       `json:"calibration_error"`
	UserCalibration     bool       `json:"user_calibration"`
	FactoryResetPending bool       `json:"factory_reset_pending,omitempty"`
	Slots               []SlotJSON `json:"slots"`
}

// SlotJSON is the JSON representation of one current slot.
type SlotJSON struct {
	Index             int    `json:"index"`
	MaxCurrentMA      uint32 `json:"max_current_ma"`
	Active            bool   `json:"active"`
	ClearOnDisconnect bool   `json:"clear_on_disconnect"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Buffered  int    `json:"buffered"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the counters.
type CountsJSON struct {
	Transitions int `json:"transitions"`
	Sessions    int `json:"sessions"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	HTTPAddr    string `json:"http_addr"`
}

// StateName returns the state name, or UNKNOWN before the controller
// reported its first status.
func StateName(snap Snapshot) string {
	if snap.EVSE.LastStateChange.IsZero() {
		return "UNKNOWN"
	}
	return snap.EVSE.State.String()
}

func buildEVSE(snap Snapshot) EVSEJSON {
	st := snap.EVSE
	e := EVSEJSON{
		State:               StateName(snap),
		DutyCycle:           st.DutyCycle,
		Contactor:           st.Contactor,
		ContactorError:      st.ContactorError,
		TurnOffPending:      st.TurnOffPending,
		MaxCurrentMA:        st.MaxCurrent,
		CPResistance:        st.CPResistance,
		PPResistance:        st.PPResistance,
		ADCSamples:          st.ADCSamples,
		Jumper:              st.Jumper.String(),
		Managed:             st.Managed,
		ManagedCurrentMA:    st.ManagedCurrent,
		Autostart:           st.Autostart,
		Boost:               st.BoostMode,
		ButtonPressed:       st.ButtonPressed,
		Session:             st.Session,
		ChargingSeconds:     int64(snap.ChargingTime().Truncate(time.Second).Seconds()),
		Calibrating:         st.Calibrating,
		CalibrationError:    st.CalibrationError,
		UserCalibration:     st.UserCalibrationActive,
		FactoryResetPending: st.FactoryResetPending,
		Slots:               make([]SlotJSON, 0, len(st.Slots)),
	}
	if !st.LastStateChange.IsZero() {
		e.LastStateChange = st.LastStateChange.UTC().Format(time.RFC3339)
	}
	for i, s := range st.Slots {
		e.Slots = append(e.Slots, SlotJSON{
			Index:             i,
			MaxCurrentMA:      s.MaxCurrent,
			Active:            s.Active,
			ClearOnDisconnect: s.ClearOnDisconnect,
		})
	}
	return e
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Ready:         snap.EVSE.Started,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		EVSE:          buildEVSE(snap),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Buffered: snap.MQTTBuffered, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Transitions: snap.Counts.Transitions,
			Sessions:    snap.Counts.Sessions,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// IsCharging reports whether the snapshot shows an energized session.
func IsCharging(snap Snapshot) bool {
	return snap.EVSE.State == iec61851.StateC && snap.EVSE.Contactor
}
