package watermark

import "fmt"

// State is a stage of a single watermarking operation.
type State int

const (
	Idle State = iota
	BaseLoaded
	WatermarkPrepared
	Composited
	EffectsApplied
	Encoded
)

var stateNames = [...]string{
	Idle:              "idle",
	BaseLoaded:        "base_loaded",
	WatermarkPrepared: "watermark_prepared",
	Composited:        "composited",
	EffectsApplied:    "effects_applied",
	Encoded:           "encoded",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}
