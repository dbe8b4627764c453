package evse

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/evse-controller/internal/hal"
	"github.com/sweeney/evse-controller/internal/slot"
	"github.com/sweeney/evse-controller/internal/storage"
)

// Handle applies a host command. Every command, valid or not, counts as
// host communication for the watchdog.
func (c *Controller) Handle(now time.Time, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastCommunication.IsZero() {
		log.Printf("evse: first host command, communication watchdog armed")
	}
	c.lastCommunication = now

	switch cmd.Name {
	case CmdPing:
		return nil
	case CmdStartCharging:
		return c.startCharging()
	case CmdStopCharging:
		log.Printf("evse: stop charging requested")
		c.arbiter.ButtonStop()
		return nil
	case CmdSetSlot:
		idx, s, err := slotFromCommand(cmd)
		if err != nil {
			return err
		}
		return c.arbiter.Set(idx, s)
	case CmdSetSlotDefault:
		idx, s, err := slotFromCommand(cmd)
		if err != nil {
			return err
		}
		if err := c.arbiter.SetDefault(idx, s); err != nil {
			return err
		}
		c.config.SlotDefaults = c.arbiter.Defaults()
		return storage.SaveConfig(c.hw.Store, c.config)
	case CmdSetSoftwareCurrent:
		return c.setSoftwareCurrent(cmd.CurrentMA)
	case CmdSetBoost:
		c.config.BoostMode = cmd.Enabled
		return storage.SaveConfig(c.hw.Store, c.config)
	case CmdSetManaged:
		return c.setManaged(cmd.Enabled)
	case CmdClearChargingTime:
		c.machine.ClearChargingTime()
		return nil
	case CmdFactoryReset:
		log.Printf("evse: factory reset requested")
		c.factoryResetPending = true
		c.factoryResetAt = now
		return nil
	case CmdCalibration:
		c.setCalibrating(cmd.Active, cmd.Error)
		return nil
	case CmdUserCalibration:
		if cmd.Calibration == nil {
			return fmt.Errorf("%s: calibration values missing", cmd.Name)
		}
		c.userCalibration = storage.UserCalibration{Active: cmd.Active, Calibration: *cmd.Calibration}
		return storage.SaveUserCalibration(c.hw.Store, c.userCalibration)
	default:
		return fmt.Errorf("%q: %w", cmd.Name, ErrUnknownCommand)
	}
}

func (c *Controller) startCharging() error {
	// A key switch turned to off wins over the host
	if c.button.Held() {
		return ErrButtonHeld
	}
	log.Printf("evse: start charging requested")
	c.button.Clear()
	return c.arbiter.SetCurrent(slot.Button, slot.ButtonStartCurrent)
}

func (c *Controller) setSoftwareCurrent(ma uint32) error {
	if c.opts.Jumper != hal.JumperSoftware {
		return ErrNotSoftware
	}
	if ma < MinSoftwareCurrent || ma > MaxSoftwareCurrent {
		return fmt.Errorf("software current %d: %w", ma, ErrCurrentRange)
	}
	c.softwareCurrent = ma
	c.arbiter.RecomputeCableLimits(c.incomingCurrent(), c.hw.ADC.Read().PP)
	return nil
}

func (c *Controller) setManaged(enabled bool) error {
	lm := slot.Slot{MaxCurrent: 0, Active: enabled, ClearOnDisconnect: enabled}
	if err := c.arbiter.Set(slot.LoadManagement, lm); err != nil {
		return err
	}
	if err := c.arbiter.SetDefault(slot.LoadManagement, lm); err != nil {
		return err
	}
	c.config.LegacyManaged = enabled
	c.config.SlotDefaults = c.arbiter.Defaults()
	log.Printf("evse: managed mode %v", enabled)
	return storage.SaveConfig(c.hw.Store, c.config)
}

func (c *Controller) setCalibrating(active, failed bool) {
	if active {
		log.Printf("evse: calibration started")
		c.calibrating = true
		c.calibrationError = false
		return
	}
	c.calibrating = false
	c.calibrationError = failed
	if failed {
		log.Printf("evse: calibration failed")
	} else {
		log.Printf("evse: calibration finished")
	}
}

func slotFromCommand(cmd Command) (int, slot.Slot, error) {
	if cmd.Slot == nil {
		return 0, slot.Slot{}, fmt.Errorf("%s: %w", cmd.Name, ErrMissingSlot)
	}
	if cmd.CurrentMA != 0 && (cmd.CurrentMA < MinSoftwareCurrent || cmd.CurrentMA > MaxSoftwareCurrent) {
		return 0, slot.Slot{}, fmt.Errorf("%s: current %d: %w", cmd.Name, cmd.CurrentMA, ErrCurrentRange)
	}
	return *cmd.Slot, slot.Slot{
		MaxCurrent:        cmd.CurrentMA,
		Active:            cmd.Active,
		ClearOnDisconnect: cmd.ClearOnDisconnect,
	}, nil
}
