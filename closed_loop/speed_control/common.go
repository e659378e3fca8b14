package control

// Direction is the commanded rotation sense of a motor.
type Direction int8

const (
	Forward Direction = 1
	Reverse Direction = -1
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Output is what the actuation mapper hands to a motor driver.
// Coast is set exactly when Duty is zero: both direction pins released.
type Output struct {
	Duty      int
	Direction Direction
	Coast     bool
}

// Driver applies an Output to one motor's direction pins and PWM channel.
type Driver interface {
	Apply(out Output) error
}

// PositionCounter is the read side of an encoder count. Count must be safe to
// call while edge handlers are updating it.
type PositionCounter interface {
	Count() int64
}

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// GetControlModeStr returns a short tag describing the output, for logs.
func GetControlModeStr(out Output) string {
	switch {
	case out.Coast:
		return "[COAST]"
	case out.Direction == Reverse:
		return "[REV]"
	default:
		return "[FWD]"
	}
}
