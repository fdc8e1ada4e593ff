package transport

import (
	"fmt"
)

// State is a stage of a single transport step.
type State int

const (
	// AtRestInLab holds the incoming lab frame momentum.
	AtRestInLab State = iota
	// BoostedToCell holds the momentum in the rest frame of the medium.
	BoostedToCell
	// RateEvaluated is entered once the interaction probability is known.
	RateEvaluated
	// NoInteraction ends a step that leaves the momentum unchanged.
	NoInteraction
	ChannelSelected
	// PartnerSampled is entered once the partner energy and the pair's s
	// have been drawn.
	PartnerSampled
	// ComMomentum holds the incoming probe in the pair's rest frame.
	ComMomentum
	// CanonicalFrame holds the outgoing probe in the pair's rest frame,
	// with the incoming probe along +z.
	CanonicalFrame
	// RotatedBack holds the outgoing probe in the pair's rest frame with
	// its actual orientation.
	RotatedBack
	CellFrameResult
	// LabFrameResult ends a step with a scattering.
	LabFrameResult
	EndState
)

var stateNames = []string{
	"AtRestInLab", "BoostedToCell", "RateEvaluated", "NoInteraction",
	"ChannelSelected", "PartnerSampled", "ComMomentum", "CanonicalFrame",
	"RotatedBack", "CellFrameResult", "LabFrameResult",
}

func (s State) String() string {
	if s < 0 || s >= EndState {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}
