package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/sweeney/evse-controller/internal/slot"
)

// Bias added to signed calibration values so they fit an unsigned word.
const Bias = 32767

// Num880Points is the number of 880 ohm calibration points.
const Num880Points = 14

// Record magics.
const (
	CalibrationMagic     = 0x12345678
	UserCalibrationMagic = 0x23456789
	ConfigMagic          = 0x34567891
	ConfigMagic2         = 0x45678912
	ConfigMagic3         = 0x56789123
	SlotDefaultsMagic    = 0x67891234
)

// Calibration page word positions. The values follow in the order mul,
// div, diff, 2700 ohm, 880 ohm points.
const (
	calMagicPos = 0
	calMulPos   = 1
)

// User calibration page word positions.
const (
	userCalMagicPos  = 0
	userCalActivePos = 1
	userCalBasePos   = 2
)

// Config page positions. The slot defaults block starts at word 2:
// magic (u32), current (u16 x 18), flags (u8 x 18, bit0 active, bit1 clear),
// padded to a word boundary.
const (
	cfgMagicPos        = 0
	cfgManagedPos      = 1
	cfgSlotBlockPos    = 2
	cfgSlotCurrentByte = (cfgSlotBlockPos + 1) * 4
	cfgSlotFlagsByte   = cfgSlotCurrentByte + slot.NumDefaults*2
	cfgMagic2Pos       = (cfgSlotFlagsByte + slot.NumDefaults + 3) / 4
	cfgBoostPos        = cfgMagic2Pos + 1
	cfgMagic3Pos       = cfgMagic2Pos + 2
)

const (
	flagActive = 1 << 0
	flagClear  = 1 << 1
)

// Calibration holds the CP measurement calibration.
type Calibration struct {
	Mul         int32               `json:"mul"`
	Div         int32               `json:"div"`
	DiffVoltage int32               `json:"diff_voltage"`
	Ref2700     int32               `json:"ref_2700"`
	Ref880      [Num880Points]int32 `json:"ref_880"`
}

// DefaultCalibration is used when no calibration is persisted.
func DefaultCalibration() Calibration {
	return Calibration{Mul: 1, Div: 1, DiffVoltage: -90}
}

// UserCalibration is a calibration supplied by the user. It is only used
// while Active is set.
type UserCalibration struct {
	Active bool
	Calibration
}

// Config is the device configuration record.
type Config struct {
	LegacyManaged bool
	BoostMode     bool
	SlotDefaults  slot.Defaults
}

// ConfigStatus reports which sections of the config record were found.
// Missing sections were replaced by defaults.
type ConfigStatus struct {
	Base            bool
	Boost           bool
	SlotDefaults    bool
	ExternalControl bool
}

func biased(v int32) uint32 {
	return uint32(v + Bias)
}

func unbiased(w uint32) int32 {
	return int32(w) - Bias
}

func putCalibration(p *Page, pos int, c Calibration) {
	p.SetWord(pos+0, biased(c.Mul))
	p.SetWord(pos+1, biased(c.Div))
	p.SetWord(pos+2, biased(c.DiffVoltage))
	p.SetWord(pos+3, biased(c.Ref2700))
	for i, v := range c.Ref880 {
		p.SetWord(pos+4+i, biased(v))
	}
}

func getCalibration(p *Page, pos int) Calibration {
	c := Calibration{
		Mul:         unbiased(p.Word(pos + 0)),
		Div:         unbiased(p.Word(pos + 1)),
		DiffVoltage: unbiased(p.Word(pos + 2)),
		Ref2700:     unbiased(p.Word(pos + 3)),
	}
	for i := range c.Ref880 {
		c.Ref880[i] = unbiased(p.Word(pos + 4 + i))
	}
	return c
}

// LoadCalibration reads the calibration record. ok is false if the record
// was missing and defaults were returned.
func LoadCalibration(s PageStore) (c Calibration, ok bool, err error) {
	p, err := s.ReadPage(CalibrationPage)
	if err != nil {
		return DefaultCalibration(), false, fmt.Errorf("load calibration: %w", err)
	}
	if p.Word(calMagicPos) != CalibrationMagic {
		return DefaultCalibration(), false, nil
	}
	return getCalibration(&p, calMulPos), true, nil
}

// SaveCalibration writes the calibration record.
func SaveCalibration(s PageStore, c Calibration) error {
	var p Page
	p.SetWord(calMagicPos, CalibrationMagic)
	putCalibration(&p, calMulPos, c)
	if err := s.WritePage(CalibrationPage, p); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	return nil
}

// LoadUserCalibration reads the user calibration record. ok is false if the
// record was missing and an inactive default was returned.
func LoadUserCalibration(s PageStore) (c UserCalibration, ok bool, err error) {
	def := UserCalibration{Calibration: DefaultCalibration()}
	p, err := s.ReadPage(UserCalibrationPage)
	if err != nil {
		return def, false, fmt.Errorf("load user calibration: %w", err)
	}
	if p.Word(userCalMagicPos) != UserCalibrationMagic {
		return def, false, nil
	}
	return UserCalibration{
		Active:      p.Word(userCalActivePos) != 0,
		Calibration: getCalibration(&p, userCalBasePos),
	}, true, nil
}

// SaveUserCalibration writes the user calibration record.
func SaveUserCalibration(s PageStore, c UserCalibration) error {
	var p Page
	p.SetWord(userCalMagicPos, UserCalibrationMagic)
	p.SetWord(userCalActivePos, boolWord(c.Active))
	putCalibration(&p, userCalBasePos, c.Calibration)
	if err := s.WritePage(UserCalibrationPage, p); err != nil {
		return fmt.Errorf("save user calibration: %w", err)
	}
	return nil
}

// LoadConfig reads the config record. Each section falls back to its
// default independently.
func LoadConfig(s PageStore) (Config, ConfigStatus, error) {
	var (
		cfg    Config
		status ConfigStatus
	)

	p, err := s.ReadPage(ConfigPage)
	if err != nil {
		cfg.SlotDefaults = slot.FactoryDefaults(false)
		return cfg, status, fmt.Errorf("load config: %w", err)
	}

	if p.Word(cfgMagicPos) == ConfigMagic {
		status.Base = true
		cfg.LegacyManaged = p.Word(cfgManagedPos) != 0
	}
	if p.Word(cfgMagic2Pos) == ConfigMagic2 {
		status.Boost = true
		cfg.BoostMode = p.Word(cfgBoostPos) != 0
	}
	status.ExternalControl = p.Word(cfgMagic3Pos) == ConfigMagic3

	if p.Word(cfgSlotBlockPos) == SlotDefaultsMagic {
		status.SlotDefaults = true
		for i := range cfg.SlotDefaults {
			flags := p[cfgSlotFlagsByte+i]
			cfg.SlotDefaults[i] = slot.Slot{
				MaxCurrent:        uint32(binary.LittleEndian.Uint16(p[cfgSlotCurrentByte+2*i:])),
				Active:            flags&flagActive != 0,
				ClearOnDisconnect: flags&flagClear != 0,
			}
		}
	} else {
		cfg.SlotDefaults = slot.FactoryDefaults(cfg.LegacyManaged)
	}

	// Records written before external control existed get its default
	if !status.ExternalControl {
		cfg.SlotDefaults[slot.External-2] = slot.ExternalDefault
	}

	return cfg, status, nil
}

// SaveConfig writes the config record with all sections present.
func SaveConfig(s PageStore, cfg Config) error {
	var p Page
	p.SetWord(cfgMagicPos, ConfigMagic)
	p.SetWord(cfgManagedPos, boolWord(cfg.LegacyManaged))

	p.SetWord(cfgSlotBlockPos, SlotDefaultsMagic)
	for i, d := range cfg.SlotDefaults {
		ma := d.MaxCurrent
		if ma > 0xFFFF {
			ma = 0xFFFF
		}
		binary.LittleEndian.PutUint16(p[cfgSlotCurrentByte+2*i:], uint16(ma))
		var flags byte
		if d.Active {
			flags |= flagActive
		}
		if d.ClearOnDisconnect {
			flags |= flagClear
		}
		p[cfgSlotFlagsByte+i] = flags
	}

	p.SetWord(cfgMagic2Pos, ConfigMagic2)
	p.SetWord(cfgBoostPos, boolWord(cfg.BoostMode))
	p.SetWord(cfgMagic3Pos, ConfigMagic3)

	if err := s.WritePage(ConfigPage, p); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// EraseConfig clears the config record so the next load uses defaults.
func EraseConfig(s PageStore) error {
	if err := s.WritePage(ConfigPage, Page{}); err != nil {
		return fmt.Errorf("erase config: %w", err)
	}
	return nil
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
