package comms

import (
	control "dd-drive/closed_loop/speed_control"
)

// ChannelReport is one motor in the wire format the web UI reads.
type ChannelReport struct {
	Target   float64 `json:"tgt"`
	Measured float64 `json:"cur"`
	Duty     int     `json:"duty"`
	Dir      string  `json:"dir"`
}

type TelemetryReport struct {
	Left  ChannelReport `json:"l"`
	Right ChannelReport `json:"r"`
	Tick  uint64        `json:"tick"`
}

func NewTelemetryReport(t control.Telemetry) TelemetryReport {
	return TelemetryReport{
		Left:  newChannelReport(t.Left),
		Right: newChannelReport(t.Right),
		Tick:  t.Tick,
	}
}

func newChannelReport(st control.ChannelState) ChannelReport {
	dir := "fwd"
	switch {
	case st.Coast:
		dir = "coast"
	case st.Direction == control.Reverse:
		dir = "rev"
	}
	return ChannelReport{
		Target:   st.Target,
		Measured: st.Measured,
		Duty:     st.Duty,
		Dir:      dir,
	}
}
