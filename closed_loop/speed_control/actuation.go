package control

import "math"

// deadZone is the effort magnitude below which the motor coasts.
const deadZone = 1.0

// ActuationMapper turns signed effort into duty and direction. Any effort
// outside the dead zone is lifted to at least MinDutyStart to break static friction.
type ActuationMapper struct {
	dutyMax      int
	minDutyStart int
}

func NewActuationMapper(cfg ActuationConfig) *ActuationMapper {
	return &ActuationMapper{
		dutyMax:      cfg.DutyMax,
		minDutyStart: cfg.MinDutyStart,
	}
}

func (m *ActuationMapper) DutyMax() int { return m.dutyMax }

// Map converts u to an Output.
func (m *ActuationMapper) Map(u float64) Output {
	out := Output{Direction: Forward}
	if u < 0 {
		out.Direction = Reverse
	}

	magnitude := math.Abs(u)
	if magnitude < deadZone {
		out.Coast = true
		return out
	}

	dutyMax := float64(m.dutyMax)
	magnitude = math.Min(magnitude, dutyMax)
	span := dutyMax - float64(m.minDutyStart)
	out.Duty = int(math.Round(float64(m.minDutyStart) + magnitude*span/dutyMax))
	return out
}
