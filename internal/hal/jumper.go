package hal

// Jumper is the current configuration read from the pin header at boot.
type Jumper uint8

const (
	Jumper6A Jumper = iota
	Jumper10A
	Jumper13A
	Jumper16A
	Jumper20A
	Jumper25A
	Jumper32A
	JumperSoftware
	JumperUnconfigured
)

// String returns a human-readable jumper name.
func (j Jumper) String() string {
	switch j {
	case Jumper6A:
		return "6A"
	case Jumper10A:
		return "10A"
	case Jumper13A:
		return "13A"
	case Jumper16A:
		return "16A"
	case Jumper20A:
		return "20A"
	case Jumper25A:
		return "25A"
	case Jumper32A:
		return "32A"
	case JumperSoftware:
		return "SOFTWARE"
	default:
		return "UNCONFIGURED"
	}
}

// Configured reports whether the jumper selects a usable current.
func (j Jumper) Configured() bool {
	return j != JumperUnconfigured
}

// Current returns the incoming cable rating in milliamps. softwareMA is used
// for the software setting; anything unknown falls back to 6 A.
func (j Jumper) Current(softwareMA uint32) uint32 {
	switch j {
	case Jumper6A:
		return 6000
	case Jumper10A:
		return 10000
	case Jumper13A:
		return 13000
	case Jumper16A:
		return 16000
	case Jumper20A:
		return 20000
	case Jumper25A:
		return 25000
	case Jumper32A:
		return 32000
	case JumperSoftware:
		return softwareMA
	default:
		return 6000
	}
}

// PinLevel is the strapping of one jumper pin.
type PinLevel byte

const (
	PinHigh    PinLevel = 'h'
	PinLow     PinLevel = 'l'
	PinOpen    PinLevel = 'o'
	PinUnknown PinLevel = 'x'
)

// LevelFromBias classifies a pin from its reading with pull-up and with
// pull-down bias.
func LevelFromBias(pullUp, pullDown bool) PinLevel {
	switch {
	case pullUp && !pullDown:
		return PinOpen
	case pullUp && pullDown:
		return PinHigh
	case !pullUp && !pullDown:
		return PinLow
	default:
		return PinUnknown
	}
}

var jumperTable = map[[2]PinLevel]Jumper{
	{PinOpen, PinHigh}: Jumper6A,
	{PinLow, PinHigh}:  Jumper10A,
	{PinHigh, PinOpen}: Jumper13A,
	{PinOpen, PinOpen}: Jumper16A,
	{PinLow, PinOpen}:  Jumper20A,
	{PinHigh, PinLow}:  Jumper25A,
	{PinOpen, PinLow}:  Jumper32A,
	{PinLow, PinLow}:   JumperSoftware,
}

// DecodeJumper maps the two pin levels to a jumper setting. Both pins high
// and every unknown combination are unconfigured.
func DecodeJumper(pin0, pin1 PinLevel) Jumper {
	if j, ok := jumperTable[[2]PinLevel{pin0, pin1}]; ok {
		return j
	}
	return JumperUnconfigured
}
