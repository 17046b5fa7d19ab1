// Package consistency classifies whether the scheduled gap between two
// itinerary steps leaves enough room for the travel between them.
package consistency

// Verdict is the feasibility classification for one itinerary transition.
type Verdict string

const (
	// VerdictOK indicates the gap comfortably covers the travel time.
	VerdictOK Verdict = "OK"
	// VerdictWarning indicates the transition is feasible but tight: less
	// than WarningThresholdMinutes of slack remains after travel.
	VerdictWarning Verdict = "WARNING"
	// VerdictError indicates the travel time exceeds the scheduled gap.
	VerdictError Verdict = "ERROR"
)

// WarningThresholdMinutes is the minimum slack (gap minus travel) below which
// a feasible transition is still flagged as tight.
const WarningThresholdMinutes = 15.0

// Classify compares estimated travel minutes against the scheduled gap between
// two steps. Travel strictly greater than the gap is an ERROR; otherwise slack
// under WarningThresholdMinutes is a WARNING, anything else is OK. A transition
// where travel exactly consumes the gap is a WARNING, not an ERROR.
func Classify(travelMinutes, gapMinutes float64) Verdict {
	if travelMinutes > gapMinutes {
		return VerdictError
	}
	if gapMinutes-travelMinutes < WarningThresholdMinutes {
		return VerdictWarning
	}
	return VerdictOK
}
