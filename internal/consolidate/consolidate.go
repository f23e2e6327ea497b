// Package consolidate implements the Transition Consolidator: a
// stateful reconciler that merges each incoming forecast against the
// currently planned next transition (spec.md section 4.D).
//
// Grounded on original_source/soundsride/consolidator.py's
// SerialConsolidator, restructured per spec.md section 9: rather than
// the Python original's UpdatingStrategy.__call__ overwriting only the
// non-null fields of a mutable object in place, Update here builds an
// immutable classify.Result from the pure classifier and applies a
// small, explicit set of field writes per strategy.
package consolidate

import (
	"github.com/soundsride/soundsrided/internal/classify"
	"github.com/soundsride/soundsrided/internal/transition"
)

// Entry is one absolute-coordinate transition, as carried by a
// ConsolidatedSpec.
type Entry struct {
	ID        uint64
	AbsMS     int64
	PostGenre string
}

// ConsolidatedSpec is the flattened view returned by Get: passed
// transitions, the single planned-next transition if any, and distant
// transitions beyond it.
type ConsolidatedSpec struct {
	Passed      []Entry
	PlannedNext *Entry
	Distant     []Entry
}

// Flattened concatenates passed ++ planned_next? ++ distant in
// absolute-timestamp order.
func (c ConsolidatedSpec) Flattened() []Entry {
	out := make([]Entry, 0, len(c.Passed)+1+len(c.Distant))
	out = append(out, c.Passed...)
	if c.PlannedNext != nil {
		out = append(out, *c.PlannedNext)
	}
	out = append(out, c.Distant...)
	return out
}

// Consolidator holds the reconciler's persistent state for one
// session. Not safe for concurrent use; the session coordinator serial
// izes access via its try-lock.
type Consolidator struct {
	tol         classify.Tolerances
	passed      []Entry
	plannedNext *Entry
	distant     []Entry

	LatestStrategy classify.Strategy
}

// New creates a Consolidator with the given classifier tolerances.
func New(tol classify.Tolerances) *Consolidator {
	return &Consolidator{tol: tol}
}

// SetTolerances updates the classifier tolerances used by subsequent
// calls to Update. Like Update, it is not safe for concurrent use.
// internal/session sets a session's tolerances once, at creation, and
// does not call it, so a config hot-reload does not reach them.
func (c *Consolidator) SetTolerances(tol classify.Tolerances) {
	c.tol = tol
}

// Update reconciles the consolidator's state against a freshly parsed
// forecast. Returns the strategy applied, or ok=false if the update
// was a no-op duplicate (actual.id already in passed).
func (c *Consolidator) Update(nowMS int64, spec transition.Spec) (classify.Strategy, bool) {
	actualEntry, hasActual := spec.First()

	if hasActual {
		for _, p := range c.passed {
			if p.ID == actualEntry.ID {
				return "", false
			}
		}
	}

	var plannedPoint, actualPoint *classify.Point
	if c.plannedNext != nil {
		plannedPoint = &classify.Point{ID: c.plannedNext.ID, AbsMS: c.plannedNext.AbsMS}
	}
	var actual Entry
	if hasActual {
		actual = Entry{ID: actualEntry.ID, AbsMS: spec.AbsoluteMS(actualEntry), PostGenre: actualEntry.PostGenre}
		actualPoint = &classify.Point{ID: actual.ID, AbsMS: actual.AbsMS}
	}

	result := classify.Classify(nowMS, plannedPoint, actualPoint, c.tol)
	c.LatestStrategy = result.Strategy

	switch result.Strategy {
	case classify.Idling:
		// no mutation

	case classify.PassedFinalTransition:
		c.movePlannedToPassed()

	case classify.Start:
		c.plannedNext = &Entry{ID: actual.ID, AbsMS: actual.AbsMS, PostGenre: actual.PostGenre}
		c.distant = absoluteTail(spec)

	case classify.Temporise, classify.NeglectMisalignment, classify.EndureMissedTransition:
		c.distant = absoluteTail(spec)

	case classify.Delay, classify.Accelerate, classify.RedispatchMissedTransition:
		c.plannedNext.AbsMS = actual.AbsMS
		c.distant = absoluteTail(spec)

	case classify.Passed:
		c.movePlannedToPassed()
		c.plannedNext = &Entry{ID: actual.ID, AbsMS: actual.AbsMS, PostGenre: actual.PostGenre}
		c.distant = absoluteTail(spec)

	case classify.Undefined:
		// no mutation: neither side of the table matched.
	}

	return result.Strategy, true
}

// Get returns the flattened consolidated view.
func (c *Consolidator) Get() ConsolidatedSpec {
	// Copies; an empty list comes back as nil.
	passed := append([]Entry(nil), c.passed...)
	distant := append([]Entry(nil), c.distant...)

	var planned *Entry
	if c.plannedNext != nil {
		p := *c.plannedNext
		planned = &p
	}

	return ConsolidatedSpec{Passed: passed, PlannedNext: planned, Distant: distant}
}

func (c *Consolidator) movePlannedToPassed() {
	if c.plannedNext == nil {
		return
	}
	c.passed = append(c.passed, *c.plannedNext)
	c.plannedNext = nil
}

// absoluteTail converts spec's tail entries (offsets relative to
// spec.AnchorMS) to absolute-coordinate Entries. Per spec.md section
// 9's resolved Open Question, distant is always rebuilt from the new
// spec's tail, not inferred to exclude a specific id.
func absoluteTail(spec transition.Spec) []Entry {
	tail := spec.Tail()
	if len(tail) == 0 {
		return nil
	}
	out := make([]Entry, len(tail))
	for i, e := range tail {
		out[i] = Entry{ID: e.ID, AbsMS: spec.AbsoluteMS(e), PostGenre: e.PostGenre}
	}
	return out
}
