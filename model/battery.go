package model

// BatteryState classifies a battery reading.
type BatteryState int

const (
	BatteryUnknown BatteryState = iota
	BatteryCharged
	BatteryCharging
	BatteryOnBattery
	BatteryLowPower
)

func (s BatteryState) String() string {
	switch s {
	case BatteryCharged:
		return "charged"
	case BatteryCharging:
		return "charging"
	case BatteryOnBattery:
		return "on_battery"
	case BatteryLowPower:
		return "low_power"
	default:
		return "unknown"
	}
}

// Battery is a voltage reading classified against the cell's operating
// range. Min and Max describe the discharge envelope of the pack.
type Battery struct {
	Voltage float64
	Min     float64
	Max     float64
	State   BatteryState
}

// NewBattery classifies a voltage reading. A zero reading means the
// telemetry link has not reported yet; at or above Max the pack is full;
// within 5% of Min it is low.
func NewBattery(voltage, min, max float64) Battery {
	b := Battery{Voltage: voltage, Min: min, Max: max}
	switch {
	case voltage <= 0 || max <= min:
		b.State = BatteryUnknown
	case voltage >= max:
		b.State = BatteryCharged
	case voltage <= min+(max-min)*0.05:
		b.State = BatteryLowPower
	default:
		b.State = BatteryOnBattery
	}
	return b
}
