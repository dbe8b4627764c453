package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/evse-controller/internal/evse"
)

// BufferSize is the number of messages kept while the broker is unreachable.
const BufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Prefix   string
	Handlers Handlers
	// OnConnectionChange is called from the paho goroutines on connect and
	// connection loss.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker and subscribes to the
// command and measurement topics.
type RealPublisher struct {
	client paho.Client
	prefix string
	router *Router
	notify func(bool)

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // true after the first successful connect
}

// NewRealPublisher creates a publisher for the given broker. A broker that
// is unreachable at startup is retried in the background; messages are
// buffered until the connection comes up.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := &RealPublisher{
		prefix: o.Prefix,
		router: NewRouter(o.Prefix, o.Handlers),
		notify: o.OnConnectionChange,
		buffer: newRingBuffer(BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(Topic(o.Prefix, TopicSystem), string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	for _, topic := range p.router.Topics() {
		// QoS 1: commands must not be lost
		c.Subscribe(topic, 1, p.onMessage)
	}

	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending, dropped := p.buffer.drain()
	p.mu.Unlock()

	if dropped > 0 {
		log.Printf("mqtt: buffer overflowed while offline, %d messages dropped", dropped)
	}
	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d buffered messages", len(pending))
		if payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err == nil {
			c.Publish(Topic(p.prefix, TopicSystem), 1, false, payload)
		}
	} else {
		log.Printf("mqtt: connected")
	}
	for _, msg := range pending {
		c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}

	if p.notify != nil {
		p.notify(true)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	if p.notify != nil {
		p.notify(false)
	}
}

func (p *RealPublisher) onMessage(_ paho.Client, msg paho.Message) {
	if err := p.router.Handle(msg.Topic(), msg.Payload()); err != nil {
		log.Printf("mqtt: %s: %v", msg.Topic(), err)
	}
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Publish sends a state transition to the MQTT broker.
func (p *RealPublisher) Publish(event evse.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: the host bills sessions from these
	return p.send(Topic(p.prefix, TopicEvents), 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(Topic(p.prefix, TopicSystem), 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for the connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
