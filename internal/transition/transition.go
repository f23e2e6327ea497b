// Package transition holds the immutable TransitionSpec value parsed
// from an incoming forecast (spec.md section 3).
package transition

import (
	"fmt"

	"github.com/soundsride/soundsrided/internal/sessionerr"
)

// Entry is one (transition-id, offset, post-genre) triple.
type Entry struct {
	ID        uint64
	OffsetMS  int64
	PostGenre string
}

// Spec is an immutable value carrying an ordered list of transitions
// anchored to an absolute millisecond timestamp.
type Spec struct {
	AnchorMS    int64
	Transitions []Entry
}

// New validates and constructs a Spec. Offsets must be strictly
// increasing and non-negative; ids must be unique within the spec.
// Empty transitions are permitted.
func New(anchorMS int64, entries []Entry) (Spec, error) {
	seen := make(map[uint64]struct{}, len(entries))
	prevOffset := int64(-1)
	for i, e := range entries {
		if e.OffsetMS < 0 {
			return Spec{}, fmt.Errorf("transition[%d] offset %d < 0: %w", i, e.OffsetMS, sessionerr.ErrMalformedForecast)
		}
		if e.OffsetMS <= prevOffset {
			return Spec{}, fmt.Errorf("transition[%d] offset %d not strictly increasing after %d: %w", i, e.OffsetMS, prevOffset, sessionerr.ErrMalformedForecast)
		}
		if _, dup := seen[e.ID]; dup {
			return Spec{}, fmt.Errorf("transition[%d] duplicate id %d: %w", i, e.ID, sessionerr.ErrMalformedForecast)
		}
		seen[e.ID] = struct{}{}
		prevOffset = e.OffsetMS
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	return Spec{AnchorMS: anchorMS, Transitions: out}, nil
}

// AbsoluteMS returns the entry's absolute timestamp.
func (s Spec) AbsoluteMS(e Entry) int64 {
	return s.AnchorMS + e.OffsetMS
}

// First returns the first transition, if any.
func (s Spec) First() (Entry, bool) {
	if len(s.Transitions) == 0 {
		return Entry{}, false
	}
	return s.Transitions[0], true
}

// Tail returns every transition after the first.
func (s Spec) Tail() []Entry {
	if len(s.Transitions) <= 1 {
		return nil
	}
	out := make([]Entry, len(s.Transitions)-1)
	copy(out, s.Transitions[1:])
	return out
}
