// Package config loads the daemon configuration from a YAML file.
// Fields missing from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default GPIO line offsets on gpiochip0 (BCM numbering on a Raspberry Pi).
const (
	DefaultChip           = "gpiochip0"
	DefaultPinRelay       = 17
	DefaultPinButton      = 27
	DefaultPinSense       = 22
	DefaultPinLED         = 23
	DefaultPinJumper0     = 5
	DefaultPinJumper1     = 6
	DefaultPWMChip        = "/sys/class/pwm/pwmchip0"
	DefaultPWMChannel     = 0
	DefaultSoftwareLimit  = 6000
	DefaultTopicPrefix    = "evse"
	DefaultStoragePath    = "/var/lib/evse-controller/eeprom.bin"
	DefaultBroker         = "tcp://192.168.1.200:1883"
	DefaultHTTPAddr       = ":80"
	DefaultTickInterval   = 10 * time.Millisecond
	DefaultStartupDelay   = 12 * time.Second
	DefaultHeartbeat      = 15 * time.Minute
	DefaultButtonDebounce = 50 * time.Millisecond
	DefaultLEDStandby     = 15 * time.Minute
)

// GPIO holds the character device chip and line offsets. A negative offset
// disables the optional button, contactor sense and LED lines.
type GPIO struct {
	Chip            string `yaml:"chip"`
	Relay           int    `yaml:"relay"`
	Button          int    `yaml:"button"`
	ButtonActiveLow bool   `yaml:"button_active_low"`
	Sense           int    `yaml:"contactor_sense"`
	LED             int    `yaml:"led"`
	Jumper0         int    `yaml:"jumper0"`
	Jumper1         int    `yaml:"jumper1"`
}

// PWM selects the sysfs PWM channel driving the control pilot.
type PWM struct {
	Chip    string `yaml:"chip"`
	Channel int    `yaml:"channel"`
}

// MQTT holds the broker connection settings.
type MQTT struct {
	Broker   string `yaml:"broker"`
	Prefix   string `yaml:"prefix"`
	ClientID string `yaml:"client_id"`
}

// Config is the daemon configuration.
type Config struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	StartupDelay   time.Duration `yaml:"startup_delay"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	ButtonDebounce time.Duration `yaml:"button_debounce"`
	LEDStandby     time.Duration `yaml:"led_standby"`
	// LEDEnabled drives the LED line; disable on boards without one.
	LEDEnabled bool `yaml:"led_enabled"`

	// SoftwareCurrent is the incoming cable limit in mA used when the
	// jumper is set to "software".
	SoftwareCurrent uint32 `yaml:"software_current_ma"`

	StoragePath string `yaml:"storage_path"`
	HTTPAddr    string `yaml:"http"`

	GPIO GPIO `yaml:"gpio"`
	PWM  PWM  `yaml:"pwm"`
	MQTT MQTT `yaml:"mqtt"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TickInterval:    DefaultTickInterval,
		StartupDelay:    DefaultStartupDelay,
		Heartbeat:       DefaultHeartbeat,
		ButtonDebounce:  DefaultButtonDebounce,
		LEDStandby:      DefaultLEDStandby,
		LEDEnabled:      true,
		SoftwareCurrent: DefaultSoftwareLimit,
		StoragePath:     DefaultStoragePath,
		HTTPAddr:        DefaultHTTPAddr,
		GPIO: GPIO{
			Chip:    DefaultChip,
			Relay:   DefaultPinRelay,
			Button:  DefaultPinButton,
			Sense:   DefaultPinSense,
			LED:     DefaultPinLED,
			Jumper0: DefaultPinJumper0,
			Jumper1: DefaultPinJumper1,
		},
		PWM: PWM{
			Chip:    DefaultPWMChip,
			Channel: DefaultPWMChannel,
		},
		MQTT: MQTT{
			Broker: DefaultBroker,
			Prefix: DefaultTopicPrefix,
		},
	}
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the controller cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 || c.TickInterval >= 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("tick_interval %v must be in (0, 100ms)", c.TickInterval))
	}
	if c.StartupDelay < 0 {
		errs = append(errs, fmt.Errorf("startup_delay %v must not be negative", c.StartupDelay))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat %v must not be negative", c.Heartbeat))
	}
	if c.SoftwareCurrent < 6000 || c.SoftwareCurrent > 32000 {
		errs = append(errs, fmt.Errorf("software_current_ma %d must be in [6000, 32000]", c.SoftwareCurrent))
	}
	if c.MQTT.Prefix == "" {
		errs = append(errs, errors.New("mqtt.prefix must not be empty"))
	}
	return errors.Join(errs...)
}
