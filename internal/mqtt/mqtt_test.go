package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/evse-controller/internal/evse"
	"github.com/sweeney/evse-controller/internal/iec61851"
)

func TestTopic(t *testing.T) {
	tests := []struct {
		prefix, suffix, want string
	}{
		{"evse", TopicEvents, "evse/events"},
		{"evse/", TopicSystem, "evse/system"},
		{"home/garage/evse", TopicCommand, "home/garage/evse/command"},
		{"evse", TopicADC, "evse/adc"},
	}
	for _, tt := range tests {
		if got := Topic(tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("Topic(%q, %q): got %q, want %q", tt.prefix, tt.suffix, got, tt.want)
		}
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	event := evse.Event{
		Timestamp:  time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		From:       iec61851.StateB,
		To:         iec61851.StateC,
		Session:    "5f0c6a52-5d2e-4c8e-9f59-3c1f0d3c9e41",
		MaxCurrent: 16000,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"evse":{"timestamp":"2026-02-10T08:30:00Z","event":"STATE_CHANGE","from":"B","to":"C","session":"5f0c6a52-5d2e-4c8e-9f59-3c1f0d3c9e41","max_current_ma":16000}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadDisconnect(t *testing.T) {
	event := evse.Event{
		Timestamp:    time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC),
		From:         iec61851.StateB,
		To:           iec61851.StateA,
		MaxCurrent:   32000,
		ChargingTime: 90*time.Minute + 400*time.Millisecond,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	e := parsed["evse"]
	if _, exists := e["session"]; exists {
		t.Error("session should be omitted without a session")
	}
	if e["charging_seconds"] != float64(5400) {
		t.Errorf("charging_seconds: got %v, want 5400", e["charging_seconds"])
	}
	if e["to"] != "A" {
		t.Errorf("to: got %v, want A", e["to"])
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := evse.Event{
		Timestamp: time.Date(2026, 2, 10, 9, 30, 0, 0, loc),
		From:      iec61851.StateA,
		To:        iec61851.StateB,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.EVSE.Timestamp != "2026-02-10T08:30:00Z" {
		t.Errorf("timestamp: got %s, want 2026-02-10T08:30:00Z", parsed.EVSE.Timestamp)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadReconnected(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("payload: got %s, want %s", payload, raw)
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"command":"set_slot","slot":7,"current_ma":16000,"active":true,"clear_on_disconnect":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Name != evse.CmdSetSlot {
		t.Errorf("Name: got %q, want %q", cmd.Name, evse.CmdSetSlot)
	}
	if cmd.Slot == nil || *cmd.Slot != 7 {
		t.Errorf("Slot: got %v, want 7", cmd.Slot)
	}
	if cmd.CurrentMA != 16000 || !cmd.Active || !cmd.ClearOnDisconnect {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestParseCommandSlotZero(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"command":"set_slot_default","slot":0}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Slot == nil || *cmd.Slot != 0 {
		t.Errorf("Slot: got %v, want explicit 0", cmd.Slot)
	}
}

func TestParseCommandUserCalibration(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"command":"set_user_calibration","active":true,"calibration":{"mul":3,"div":2,"diff_voltage":-80}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Calibration == nil {
		t.Fatal("expected calibration values")
	}
	if cmd.Calibration.Mul != 3 || cmd.Calibration.Div != 2 || cmd.Calibration.DiffVoltage != -80 {
		t.Errorf("Calibration: got %+v", *cmd.Calibration)
	}
}

func TestParseCommandErrors(t *testing.T) {
	if _, err := ParseCommand([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseCommand([]byte(`{"slot":1}`)); !errors.Is(err, ErrNoCommand) {
		t.Errorf("expected ErrNoCommand, got %v", err)
	}
}

func TestParseMeasurement(t *testing.T) {
	cp, pp, err := ParseMeasurement([]byte(`{"cp_pe_ohm":880,"pp_pe_ohm":220}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp != 880 || pp != 220 {
		t.Errorf("got cp=%d pp=%d, want 880/220", cp, pp)
	}

	cp, _, err = ParseMeasurement([]byte(`{"cp_pe_ohm":0,"pp_pe_ohm":0}`))
	if err != nil || cp != 0 {
		t.Errorf("explicit zero: got cp=%d err=%v", cp, err)
	}
}

func TestParseMeasurementErrors(t *testing.T) {
	for _, payload := range []string{`{"cp_pe_ohm":880}`, `{"pp_pe_ohm":220}`, `[]`, `{"cp_pe_ohm":-1,"pp_pe_ohm":0}`} {
		if _, _, err := ParseMeasurement([]byte(payload)); err == nil {
			t.Errorf("%s: expected error", payload)
		}
	}
}

func TestRouterTopics(t *testing.T) {
	r := NewRouter("evse", Handlers{})
	got := r.Topics()
	if len(got) != 2 || got[0] != "evse/command" || got[1] != "evse/adc" {
		t.Errorf("Topics: got %v", got)
	}
}

func TestRouterDispatch(t *testing.T) {
	var commands []evse.Command
	var samples [][2]uint32
	r := NewRouter("evse", Handlers{
		Command: func(cmd evse.Command) error {
			commands = append(commands, cmd)
			return nil
		},
		Measurement: func(cp, pp uint32) {
			samples = append(samples, [2]uint32{cp, pp})
		},
	})

	if err := r.Handle("evse/command", []byte(`{"command":"ping"}`)); err != nil {
		t.Fatalf("command: %v", err)
	}
	if err := r.Handle("evse/adc", []byte(`{"cp_pe_ohm":2700,"pp_pe_ohm":680}`)); err != nil {
		t.Fatalf("adc: %v", err)
	}

	if len(commands) != 1 || commands[0].Name != evse.CmdPing {
		t.Errorf("commands: got %+v", commands)
	}
	if len(samples) != 1 || samples[0] != [2]uint32{2700, 680} {
		t.Errorf("samples: got %v", samples)
	}
}

func TestRouterErrors(t *testing.T) {
	r := NewRouter("evse", Handlers{
		Command: func(evse.Command) error { return evse.ErrButtonHeld },
	})

	err := r.Handle("evse/command", []byte(`{"command":"start_charging"}`))
	if !errors.Is(err, evse.ErrButtonHeld) {
		t.Errorf("expected handler error to be wrapped, got %v", err)
	}
	if err := r.Handle("evse/other", []byte(`{}`)); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic, got %v", err)
	}
	if err := r.Handle("evse/adc", []byte(`{}`)); err == nil {
		t.Error("expected error for incomplete measurement")
	}
}

func TestRouterNilHandlers(t *testing.T) {
	r := NewRouter("evse", Handlers{})
	if err := r.Handle("evse/command", []byte(`{"command":"ping"}`)); err != nil {
		t.Errorf("command without handler: %v", err)
	}
	if err := r.Handle("evse/adc", []byte(`{"cp_pe_ohm":1,"pp_pe_ohm":1}`)); err != nil {
		t.Errorf("adc without handler: %v", err)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	event := evse.Event{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		From:      iec61851.StateA,
		To:        iec61851.StateB,
	}

	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 || f.Events[0].To != iec61851.StateB {
		t.Errorf("Events: got %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
	var parsed Payload
	if err := json.Unmarshal(f.Payloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.EVSE.From != "A" || parsed.EVSE.To != "B" {
		t.Errorf("payload: got %+v", parsed.EVSE)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker gone")
	f.PublishSystemError = errors.New("broker gone")

	if err := f.Publish(evse.Event{}); err == nil {
		t.Error("expected Publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected PublishSystem error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherSystemEvents(t *testing.T) {
	f := NewFakePublisher()

	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"})

	names := f.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "HEARTBEAT" {
		t.Errorf("SystemEventNames: got %v", names)
	}
	if !f.SystemEvents[0].Retained || f.SystemEvents[1].Retained {
		t.Error("retained flag not preserved")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(evse.Event{})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true
	f.Pending = 3

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 || len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("expected recorded events cleared")
	}
	if f.Closed || f.IsConnected() || f.Buffered() != 0 {
		t.Error("expected Closed, Connected and Pending reset")
	}
}
