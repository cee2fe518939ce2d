package collector

import "fmt"

// Phase is the state of a collection run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePaginatingEntities
	PhaseFetchingSecondaryData
	PhaseAggregated
	PhaseDone
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:                  "idle",
	PhasePaginatingEntities:    "paginating_entities",
	PhaseFetchingSecondaryData: "fetching_secondary_data",
	PhaseAggregated:            "aggregated",
	PhaseDone:                  "done",
	PhaseFailed:                "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// transitions lists the allowed successors of each phase. Secondary
// fetch failures never fail a run; only cancellation can.
var transitions = map[Phase][]Phase{
	PhaseIdle:                  {PhasePaginatingEntities},
	PhasePaginatingEntities:    {PhaseFetchingSecondaryData, PhaseFailed},
	PhaseFetchingSecondaryData: {PhaseAggregated, PhaseFailed},
	PhaseAggregated:            {PhaseDone},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
