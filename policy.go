package socmonitor

// Action is the outcome of evaluating the hysteresis policy for one rig.
type Action int

const (
	// NoChange leaves the rig in whatever state it was observed in.
	NoChange Action = iota
	// StartRequested means the SoC is above the resume threshold.
	StartRequested
	// StopRequested means the SoC is below the stop threshold.
	StopRequested
)

func (a Action) String() string {
	switch a {
	case StartRequested:
		return "start"
	case StopRequested:
		return "stop"
	default:
		return "no-change"
	}
}

// Decide maps the current SoC reading onto a per-rig action. The decision is
// reading-driven: below stopSoC always stops, above resumeSoC always starts,
// and inside the inclusive band [stopSoC, resumeSoC] the rig is left as-is.
// The currentlyActive argument never influences the outcome; it exists so the
// caller can suppress redundant commands when the decision matches the
// observed state.
func Decide(soc, stopSoC, resumeSoC float64, currentlyActive bool) Action {
	if soc < stopSoC {
		return StopRequested
	}
	if soc > resumeSoC {
		return StartRequested
	}
	return NoChange
}

// Wants reports whether the action maps onto a desired hashing state. The
// second return is false for NoChange.
func (a Action) Wants() (active, ok bool) {
	switch a {
	case StartRequested:
		return true, true
	case StopRequested:
		return false, true
	}
	return false, false
}
