// Package mqtt connects the controller to the host over MQTT: state-change
// and system events are published, host commands and ADC samples are
// received.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/evse-controller/internal/evse"
)

// Topic suffixes below the configured prefix.
const (
	TopicEvents  = "events"
	TopicSystem  = "system"
	TopicCommand = "command"
	TopicADC     = "adc"
)

// EventStateChange is the event name of a published transition.
const EventStateChange = "STATE_CHANGE"

// Topic joins the prefix and a topic suffix.
func Topic(prefix, suffix string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + suffix
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a state transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event evse.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active and how
// many messages wait for it.
type ConnectionStatus interface {
	IsConnected() bool
	Buffered() int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RESTART"
	Reason     string // e.g., "SIGTERM", "communication watchdog"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload of a state transition.
type Payload struct {
	EVSE EVSEPayload `json:"evse"`
}

// EVSEPayload contains the transition details.
type EVSEPayload struct {
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	From            string `json:"from"`
	To              string `json:"to"`
	Session         string `json:"session,omitempty"`
	MaxCurrentMA    uint32 `json:"max_current_ma"`
	ChargingSeconds int64  `json:"charging_seconds,omitempty"`
}

// FormatPayload creates the JSON payload for a state transition.
func FormatPayload(event evse.Event) ([]byte, error) {
	payload := Payload{
		EVSE: EVSEPayload{
			Timestamp:       event.Timestamp.UTC().Format(time.RFC3339),
			Event:           EventStateChange,
			From:            event.From.String(),
			To:              event.To.String(),
			Session:         event.Session,
			MaxCurrentMA:    event.MaxCurrent,
			ChargingSeconds: int64(event.ChargingTime.Truncate(time.Second).Seconds()),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Inbound message errors.
var (
	ErrUnknownTopic = errors.New("unknown topic")
	ErrNoCommand    = errors.New("command name missing")
)

// Measurement is an ADC sample as sent by the measurement front end.
type Measurement struct {
	CPResistance *uint32 `json:"cp_pe_ohm"`
	PPResistance *uint32 `json:"pp_pe_ohm"`
}

// ParseCommand decodes a host command payload.
func ParseCommand(payload []byte) (evse.Command, error) {
	var cmd evse.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return evse.Command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Name == "" {
		return evse.Command{}, ErrNoCommand
	}
	return cmd, nil
}

// ParseMeasurement decodes an ADC sample. Both resistances are required.
func ParseMeasurement(payload []byte) (cpOhm, ppOhm uint32, err error) {
	var m Measurement
	if err := json.Unmarshal(payload, &m); err != nil {
		return 0, 0, fmt.Errorf("decode measurement: %w", err)
	}
	if m.CPResistance == nil || m.PPResistance == nil {
		return 0, 0, errors.New("decode measurement: cp_pe_ohm and pp_pe_ohm required")
	}
	return *m.CPResistance, *m.PPResistance, nil
}

// Handlers receive decoded inbound messages. Nil handlers ignore their topic.
type Handlers struct {
	Command     func(evse.Command) error
	Measurement func(cpOhm, ppOhm uint32)
}

// Router dispatches inbound messages by topic.
type Router struct {
	prefix   string
	handlers Handlers
}

// NewRouter creates a Router for topics below prefix.
func NewRouter(prefix string, h Handlers) *Router {
	return &Router{prefix: prefix, handlers: h}
}

// Topics returns the topics the router subscribes to.
func (r *Router) Topics() []string {
	return []string{Topic(r.prefix, TopicCommand), Topic(r.prefix, TopicADC)}
}

// Handle decodes and dispatches one message.
func (r *Router) Handle(topic string, payload []byte) error {
	switch topic {
	case Topic(r.prefix, TopicCommand):
		cmd, err := ParseCommand(payload)
		if err != nil {
			return err
		}
		if r.handlers.Command == nil {
			return nil
		}
		if err := r.handlers.Command(cmd); err != nil {
			return fmt.Errorf("command %s: %w", cmd.Name, err)
		}
		return nil
	case Topic(r.prefix, TopicADC):
		cp, pp, err := ParseMeasurement(payload)
		if err != nil {
			return err
		}
		if r.handlers.Measurement != nil {
			r.handlers.Measurement(cp, pp)
		}
		return nil
	default:
		return fmt.Errorf("%s: %w", topic, ErrUnknownTopic)
	}
}
