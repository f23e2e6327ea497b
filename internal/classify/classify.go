// Package classify implements the Updating-Strategy Classifier: a
// pure function that decides how the consolidator should react to a
// freshly arrived forecast, given what it had previously planned.
//
// Grounded condition-by-condition on
// original_source/soundsride/consolidator.py's
// UpdatingStrategyDetection.detect, organized as the explicit decision
// table spec.md section 4.C names (a tagged strategy, looked up by an
// ordered chain of named conditions, rather than an implicit branch
// tangle — spec.md section 9's decision-table-dispatch note).
package classify

import "math"

// Strategy is the closed set of updating strategies the classifier
// can produce.
type Strategy string

const (
	Idling                     Strategy = "Idling"
	Start                      Strategy = "Start"
	PassedFinalTransition      Strategy = "PassedFinalTransition"
	Passed                     Strategy = "Passed"
	Temporise                  Strategy = "Temporise"
	NeglectMisalignment        Strategy = "NeglectMisalignment"
	Delay                      Strategy = "Delay"
	Accelerate                 Strategy = "Accelerate"
	EndureMissedTransition     Strategy = "EndureMissedTransition"
	RedispatchMissedTransition Strategy = "RedispatchMissedTransition"
	Undefined                  Strategy = "Undefined"
)

// Point names a transition id and its absolute millisecond timestamp.
type Point struct {
	ID    uint64
	AbsMS int64
}

// Tolerances parametrize the classifier (spec.md section 4.C).
type Tolerances struct {
	DeviationToleranceMS int64
	HotZoneEntranceMS    int64 // use math.MaxInt64 (or a very large value) for "+Inf"
}

// DefaultTolerances matches spec.md's stated defaults.
func DefaultTolerances() Tolerances {
	return Tolerances{
		DeviationToleranceMS: 0,
		HotZoneEntranceMS:    math.MaxInt64,
	}
}

// Deltas carries the three signed millisecond offsets named in
// spec.md section 3's UpdatingStrategy value.
type Deltas struct {
	CurrentToPlannedMS int64 // d_cp
	CurrentToActualMS  int64 // d_ca
	PlannedToActualMS  int64 // d_pa
}

// Result is the classifier's pure output.
type Result struct {
	Strategy       Strategy
	Deltas         Deltas
	ActionRequired bool
}

// Classify decides the updating strategy for the given planned/actual
// transition pair. planned and actual are nil when absent.
func Classify(nowMS int64, planned, actual *Point, tol Tolerances) Result {
	switch {
	case planned == nil && actual == nil:
		return Result{Strategy: Idling, ActionRequired: false}
	case planned != nil && actual == nil:
		return Result{Strategy: PassedFinalTransition, ActionRequired: true}
	case planned == nil && actual != nil:
		return Result{Strategy: Start, ActionRequired: true}
	case planned.ID != actual.ID:
		return Result{Strategy: Passed, ActionRequired: true}
	}

	// planned.ID == actual.ID: the main-line case.
	dcp := planned.AbsMS - nowMS
	dca := actual.AbsMS - nowMS
	dpa := actual.AbsMS - planned.AbsMS
	deltas := Deltas{CurrentToPlannedMS: dcp, CurrentToActualMS: dca, PlannedToActualMS: dpa}

	hz := tol.HotZoneEntranceMS
	t := tol.DeviationToleranceMS

	plannedInHotZone := dcp >= 0 && dcp <= hz
	actualInHotZone := dca >= 0 && dca <= hz
	aligned := abs64(dpa) <= t

	switch {
	// Both beyond the hot zone: nothing to react to yet.
	case dca >= hz && dcp >= hz:
		return Result{Strategy: Temporise, Deltas: deltas, ActionRequired: false}

	// Both in the hot zone. Delay is checked before alignment so that a
	// positive misalignment of exactly T counts as a delay (the tolerance
	// is right-closed on the positive side).
	case actualInHotZone && plannedInHotZone && dpa > 0 && dpa >= t:
		return Result{Strategy: Delay, Deltas: deltas, ActionRequired: true}
	case actualInHotZone && plannedInHotZone && aligned:
		return Result{Strategy: NeglectMisalignment, Deltas: deltas, ActionRequired: false}
	case actualInHotZone && plannedInHotZone && dpa <= -t:
		return Result{Strategy: Accelerate, Deltas: deltas, ActionRequired: true}

	// Actual beyond hot zone, planned inside it.
	case dca >= hz && plannedInHotZone && aligned:
		return Result{Strategy: NeglectMisalignment, Deltas: deltas, ActionRequired: false}
	case dca >= hz && plannedInHotZone && dpa >= t:
		return Result{Strategy: Delay, Deltas: deltas, ActionRequired: true}

	// Actual inside hot zone, planned beyond it.
	case actualInHotZone && dcp >= hz && aligned:
		return Result{Strategy: NeglectMisalignment, Deltas: deltas, ActionRequired: false}
	case actualInHotZone && dcp >= hz && dpa <= -t:
		return Result{Strategy: Accelerate, Deltas: deltas, ActionRequired: true}

	// Planned transition already passed, actual still upcoming.
	case dca >= 0 && dcp <= 0 && dpa <= t:
		return Result{Strategy: EndureMissedTransition, Deltas: deltas, ActionRequired: false}
	case dca >= 0 && dcp <= 0 && dpa >= t:
		return Result{Strategy: RedispatchMissedTransition, Deltas: deltas, ActionRequired: true}

	default:
		return Result{Strategy: Undefined, Deltas: deltas, ActionRequired: false}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
