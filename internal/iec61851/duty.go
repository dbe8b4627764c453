package iec61851

// Duty cycle bounds mandated by the standard, in permille.
const (
	MinDutyCycle = 80
	MaxDutyCycle = 1000
)

// DutyCycleForCurrent encodes a current in milliamps as a CP duty cycle in
// permille. Zero current maps to NoChargeDutyCycle.
func DutyCycleForCurrent(ma uint32) uint16 {
	if ma == 0 {
		return NoChargeDutyCycle
	}

	var duty uint32
	if ma <= 51000 {
		// 6A..51A: I = duty% * 0.6
		duty = ma / 60
	} else {
		// 51A..80A: I = (duty% - 64) * 2.5
		duty = ma/250 + 640
	}

	return uint16(min(max(duty, MinDutyCycle), MaxDutyCycle))
}
