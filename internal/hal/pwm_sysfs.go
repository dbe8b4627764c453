package hal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// PWMPeriodNs is the CP carrier period (1 kHz).
const PWMPeriodNs = 1_000_000

// SysfsPWM drives a PWM channel exported through /sys/class/pwm.
type SysfsPWM struct {
	dir  string
	duty uint16
}

// NewSysfsPWM exports channel of chip (e.g. /sys/class/pwm/pwmchip0), sets
// the 1 kHz period and starts with a constant high output.
func NewSysfsPWM(chip string, channel int) (*SysfsPWM, error) {
	dir := filepath.Join(chip, fmt.Sprintf("pwm%d", channel))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(chip, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export pwm%d: %w", channel, err)
		}
	}

	p := &SysfsPWM{dir: dir}
	if err := writeSysfs(filepath.Join(dir, "period"), strconv.Itoa(PWMPeriodNs)); err != nil {
		return nil, fmt.Errorf("set period: %w", err)
	}
	if err := p.SetDutyCycle(MaxDutyCycle); err != nil {
		return nil, err
	}
	if err := writeSysfs(filepath.Join(dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("enable pwm: %w", err)
	}
	return p, nil
}

// SetDutyCycle sets the high time in permille.
func (p *SysfsPWM) SetDutyCycle(permille uint16) error {
	if permille > MaxDutyCycle {
		permille = MaxDutyCycle
	}
	ns := int(permille) * (PWMPeriodNs / MaxDutyCycle)
	if err := writeSysfs(filepath.Join(p.dir, "duty_cycle"), strconv.Itoa(ns)); err != nil {
		return fmt.Errorf("set duty cycle: %w", err)
	}
	p.duty = permille
	return nil
}

// DutyCycle returns the duty cycle last written.
func (p *SysfsPWM) DutyCycle() uint16 {
	return p.duty
}

// Close leaves the CP line constantly high.
func (p *SysfsPWM) Close() error {
	return p.SetDutyCycle(MaxDutyCycle)
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
