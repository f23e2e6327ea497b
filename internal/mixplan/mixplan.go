// Package mixplan implements the Mix Planner: schedules snippets
// against a consolidated transition spec, detects overlaps between
// consecutive snippets, and resolves each overlap into a legal
// cross-fade window (spec.md section 4.E).
//
// Grounded on original_source/soundsride/mix_plan.py's
// MixPlan._get_overlap_zones / _get_cross_fade_zone_candidate /
// set_snippet_transitions / get_last_scheduled_snippet_before_timestamp.
// Fade curve grounded on internal/audio's crossfade.go (Smoothstep):
// Render defaults to spec.md's plain linear ramp but switches to the
// smoothstep curve when Tunables.FadeCurve is "smoothstep".
package mixplan

import (
	"fmt"
	"sort"

	"github.com/soundsride/soundsrided/internal/audio"
	"github.com/soundsride/soundsrided/internal/config"
	"github.com/soundsride/soundsrided/internal/consolidate"
	"github.com/soundsride/soundsrided/internal/sessionerr"
	"github.com/soundsride/soundsrided/internal/snippet"
)

// Mode controls where a fade window sits inside a transition zone.
type Mode string

const (
	Early  Mode = "EARLY"
	Medium Mode = "MEDIUM"
	Late   Mode = "LATE"
	Slow   Mode = "SLOW"
)

// DefaultMode mirrors spec.md section 4.E step 2: highwayExit gets a
// slow fade, every other post-genre defaults to EARLY.
func DefaultMode(postGenre string) Mode {
	if postGenre == "highwayExit" {
		return Slow
	}
	return Early
}

// Window is an inclusive [MinMS, MaxMS] span on the session timeline.
// MinMS == MaxMS represents a hard cut (instantaneous, no fade).
type Window struct {
	MinMS int64
	MaxMS int64
}

func (w Window) length() int64 { return w.MaxMS - w.MinMS }

// ScheduledSnippet is a SongSnippet placed onto the session timeline
// (spec.md section 3 ScheduledSnippet).
type ScheduledSnippet struct {
	Snippet               snippet.Snippet
	ScheduledTransitionMS int64
	Mode                  Mode
	FadeIn                *Window
	FadeOut               *Window
}

// EarliestStart is the earliest timestamp this snippet could start
// playing without being clipped.
func (s ScheduledSnippet) EarliestStart() int64 {
	es := s.ScheduledTransitionMS - s.Snippet.PreDuration()
	if es < 0 {
		return 0
	}
	return es
}

// LatestEnd is the latest timestamp this snippet could play through.
func (s ScheduledSnippet) LatestEnd() int64 {
	return s.ScheduledTransitionMS + s.Snippet.PostDuration()
}

// ScheduledStart is where playback actually begins: the start of the
// fade-in window if one is set, else EarliestStart.
func (s ScheduledSnippet) ScheduledStart() int64 {
	if s.FadeIn == nil {
		return s.EarliestStart()
	}
	return s.FadeIn.MinMS
}

// ScheduledEnd is where playback actually ends: the end of the
// fade-out window if one is set, else LatestEnd.
func (s ScheduledSnippet) ScheduledEnd() int64 {
	if s.FadeOut == nil {
		return s.LatestEnd()
	}
	return s.FadeOut.MaxMS
}

// Plan is an ordered mix plan: ScheduledSnippets sorted by
// ScheduledTransitionMS.
type Plan struct {
	Snippets []ScheduledSnippet
}

// LengthMS is the plan's total length: the maximum ScheduledEnd
// across all snippets.
func (p *Plan) LengthMS() int64 {
	var max int64
	for _, s := range p.Snippets {
		if end := s.ScheduledEnd(); end > max {
			max = end
		}
	}
	return max
}

// lastBefore returns the last snippet whose ScheduledTransitionMS <=
// timestamp, matching get_last_scheduled_snippet_before_timestamp's
// inclusive boundary exactly (see DESIGN.md Open Question 2).
func (p *Plan) lastBefore(timestamp int64) (ScheduledSnippet, bool) {
	var last ScheduledSnippet
	found := false
	for _, s := range p.Snippets {
		if s.ScheduledTransitionMS > timestamp {
			return last, found
		}
		last = s
		found = true
	}
	return last, found
}

// Build runs the full Mix Planner algorithm: carry-forward, snippet
// selection, overlap detection, and fade-zone computation (spec.md
// section 4.E steps 1-4; step 5's PCM render is Render, below). tun is
// the session's current config.Tunables, read once per plan so a
// hot-reload mid-session only affects the next forecast.
func Build(consolidated consolidate.ConsolidatedSpec, onlyAfterMS int64, lib *snippet.Library, previous *Plan, tun config.Tunables) (*Plan, error) {
	plan := &Plan{}

	var carried ScheduledSnippet
	haveCarried := false
	if previous != nil {
		carried, haveCarried = previous.lastBefore(onlyAfterMS)
		if haveCarried {
			plan.Snippets = append(plan.Snippets, carried)
		}
	}

	entries := consolidated.Flattened()
	sort.Slice(entries, func(i, j int) bool { return entries[i].AbsMS < entries[j].AbsMS })

	scheduled := 0
	for _, e := range entries {
		if scheduled >= tun.LookaheadSnippetCount {
			break
		}
		if e.AbsMS < onlyAfterMS {
			continue
		}
		if haveCarried && e.AbsMS == carried.ScheduledTransitionMS {
			// Already represented by the carried-forward snippet;
			// see DESIGN.md Open Question 2.
			continue
		}
		if e.AbsMS <= 0 {
			return nil, fmt.Errorf("mixplan: transition %d at %dms: %w", e.ID, e.AbsMS, sessionerr.ErrInvalidSchedule)
		}

		snip, ok := lib.Get(e.PostGenre)
		if !ok {
			return nil, fmt.Errorf("mixplan: no snippet available for genre %q: %w", e.PostGenre, sessionerr.ErrUpstreamFailure)
		}

		plan.Snippets = append(plan.Snippets, ScheduledSnippet{
			Snippet:               snip,
			ScheduledTransitionMS: e.AbsMS,
			Mode:                  DefaultMode(e.PostGenre),
		})
		scheduled++
	}

	sort.Slice(plan.Snippets, func(i, j int) bool {
		return plan.Snippets[i].ScheduledTransitionMS < plan.Snippets[j].ScheduledTransitionMS
	})

	if len(plan.Snippets) < 2 {
		return plan, nil
	}

	for i := 0; i < len(plan.Snippets)-1; i++ {
		resolveOverlap(&plan.Snippets[i], &plan.Snippets[i+1], tun)
	}

	return plan, nil
}

// resolveOverlap implements spec.md section 4.E steps 3-4 for one
// consecutive pair: overlap detection, working/transition zone
// computation, and fade-window placement by B's mode, with a hard-cut
// fallback when the working zone is shorter than the cross-fade
// duration.
func resolveOverlap(a, b *ScheduledSnippet, tun config.Tunables) {
	if a.LatestEnd() <= b.EarliestStart() {
		return // no overlap: nothing to resolve.
	}

	overlapStart := max64(a.ScheduledTransitionMS, b.EarliestStart())
	overlapEnd := min64(a.LatestEnd(), b.ScheduledTransitionMS)

	workingStart := a.ScheduledTransitionMS + tun.TransitionSafeZoneMS
	workingEnd := b.ScheduledTransitionMS - tun.TransitionSafeZoneMS
	workingLen := workingEnd - workingStart

	if workingLen < tun.CrossFadeMS {
		mid := (overlapStart + overlapEnd) / 2
		a.FadeOut = &Window{MinMS: mid, MaxMS: mid}
		b.FadeIn = &Window{MinMS: mid, MaxMS: mid}
		return
	}

	transitionStart := max64(overlapStart, workingStart)
	transitionEnd := min64(overlapEnd, workingEnd)
	transitionLen := transitionEnd - transitionStart

	effective := tun.CrossFadeMS
	if transitionLen < effective {
		effective = transitionLen
	}

	var fadeStart, fadeEnd int64
	switch b.Mode {
	case Late:
		fadeEnd = transitionEnd
		fadeStart = fadeEnd - effective
	case Medium:
		center := transitionStart + (transitionEnd-transitionStart)/2
		fadeStart = center - effective/2
		fadeEnd = center + effective/2
	case Slow:
		fadeEnd = transitionEnd
		fadeStart = fadeEnd - tun.LongCrossFadeMS
	case Early:
		fadeStart = transitionStart
		fadeEnd = fadeStart + tun.CrossFadeMS
	default:
		fadeStart = transitionStart
		fadeEnd = fadeStart + tun.CrossFadeMS
	}

	a.FadeOut = &Window{MinMS: fadeStart, MaxMS: fadeEnd}
	b.FadeIn = &Window{MinMS: fadeStart, MaxMS: fadeEnd}
}

// Render produces the plan's PCM buffer: a silent base of LengthMS
// overlaid with each snippet's audio (with fade-in/fade-out applied
// inside its fade window), per spec.md section 4.E step 5. The gain
// curve across each fade window follows tun.FadeCurve.
func Render(plan *Plan, format audio.Format, tun config.Tunables) audio.Segment {
	perMS := int64(format.Channels) * int64(format.SampleRate) / 1000
	total := plan.LengthMS() * perMS
	if total < 0 {
		total = 0
	}
	base := make([]int16, total)

	curve := gainCurve(tun.FadeCurve)

	for _, s := range plan.Snippets {
		overlay(base, s, format, perMS, curve)
	}

	return audio.Segment{Samples: base, Format: format}
}

// gainCurve maps a Tunables.FadeCurve name to the gain function applied
// across a fade window. "smoothstep" reuses internal/audio's Smoothstep
// curve (originally InfiniteRadio's crossfade curve); anything else,
// including the empty default, is a plain linear ramp.
func gainCurve(name string) func(float64) float64 {
	if name == "smoothstep" {
		return audio.Smoothstep
	}
	return func(t float64) float64 { return t }
}

func overlay(base []int16, s ScheduledSnippet, format audio.Format, perMS int64, curve func(float64) float64) {
	seg := s.Snippet.Samples()

	startMS := s.ScheduledStart()
	preDuration := s.Snippet.PreDuration()
	snippetStartMS := preDuration - (s.ScheduledTransitionMS - startMS)
	endMS := s.ScheduledEnd()
	snippetEndMS := preDuration + (endMS - s.ScheduledTransitionMS)

	sliced := seg.Slice(snippetStartMS, snippetEndMS)
	samples := make([]int16, len(sliced.Samples))
	copy(samples, sliced.Samples)

	applyFade(samples, format, startMS, s.FadeIn, fadeKindIn, curve)
	applyFade(samples, format, startMS, s.FadeOut, fadeKindOut, curve)

	destOffset := startMS * perMS
	for i, v := range samples {
		idx := destOffset + int64(i)
		if idx < 0 || idx >= int64(len(base)) {
			continue
		}
		sum := int32(base[idx]) + int32(v)
		base[idx] = clampInt16(sum)
	}
}

type fadeKind int

const (
	fadeKindIn fadeKind = iota
	fadeKindOut
)

// applyFade ramps samples to/from silence across win using curve,
// spec.md's section 4.E step 5 (linear fade-in/fade-out is the default
// curve; see gainCurve). segmentStartMS is the timeline position of
// sample index 0 in samples.
func applyFade(samples []int16, format audio.Format, segmentStartMS int64, win *Window, kind fadeKind, curve func(float64) float64) {
	if win == nil || win.length() == 0 {
		return
	}
	perMS := int64(format.Channels) * int64(format.SampleRate) / 1000
	startIdx := (win.MinMS - segmentStartMS) * perMS
	endIdx := (win.MaxMS - segmentStartMS) * perMS

	for i := range samples {
		idx := int64(i)
		if idx < startIdx || idx >= endIdx {
			continue
		}
		t := float64(idx-startIdx) / float64(endIdx-startIdx)
		if kind == fadeKindOut {
			t = 1 - t
		}
		gain := curve(t)
		samples[i] = int16(float64(samples[i]) * gain)
	}
}

func clampInt16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
