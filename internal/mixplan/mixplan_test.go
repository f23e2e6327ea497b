package mixplan

import (
	"testing"

	"github.com/soundsride/soundsrided/internal/audio"
	"github.com/soundsride/soundsrided/internal/config"
	"github.com/soundsride/soundsrided/internal/snippet"
)

// fakeSnippet builds a snippet.Snippet with the given pre/post
// durations without touching disk or FFmpeg. snippet.Snippet's fields
// are exported and its song pointer may be nil here since these tests
// only exercise timeline math, never Samples().
func fakeSnippet(preDuration, postDuration int64) snippet.Snippet {
	return snippet.Snippet{
		StartMS:      0,
		TransitionMS: preDuration,
		EndMS:        preDuration + postDuration,
	}
}

// TestS5HardCutFallback mirrors spec.md scenario S5 exactly: a working
// zone of length 0 is infeasible, so the planner falls back to a hard
// cut at the overlap zone's midpoint.
func TestS5HardCutFallback(t *testing.T) {
	a := ScheduledSnippet{
		Snippet:               fakeSnippet(10000, 20000),
		ScheduledTransitionMS: 50000,
	}
	b := ScheduledSnippet{
		Snippet:               fakeSnippet(15000, 5000),
		ScheduledTransitionMS: 60000,
		Mode:                  Early,
	}

	if got := a.LatestEnd(); got != 70000 {
		t.Fatalf("A.LatestEnd() = %d, want 70000", got)
	}
	if got := b.EarliestStart(); got != 45000 {
		t.Fatalf("B.EarliestStart() = %d, want 45000", got)
	}

	tun := config.Tunables{TransitionSafeZoneMS: 5000, CrossFadeMS: 3000, LongCrossFadeMS: 25000}
	resolveOverlap(&a, &b, tun)

	if a.FadeOut == nil || b.FadeIn == nil {
		t.Fatal("expected a hard-cut fade window to be assigned")
	}
	if a.FadeOut.MinMS != 55000 || a.FadeOut.MaxMS != 55000 {
		t.Errorf("hard cut at %+v, want {55000 55000}", *a.FadeOut)
	}
	if *a.FadeOut != *b.FadeIn {
		t.Errorf("A.FadeOut = %+v, B.FadeIn = %+v, must match", *a.FadeOut, *b.FadeIn)
	}
}

func TestResolveOverlapNoOverlapLeavesFadesNil(t *testing.T) {
	a := ScheduledSnippet{Snippet: fakeSnippet(5000, 5000), ScheduledTransitionMS: 10000}
	b := ScheduledSnippet{Snippet: fakeSnippet(5000, 5000), ScheduledTransitionMS: 30000, Mode: Early}

	tun := config.Defaults()
	resolveOverlap(&a, &b, tun)

	if a.FadeOut != nil || b.FadeIn != nil {
		t.Errorf("expected no fade window when A.LatestEnd <= B.EarliestStart, got FadeOut=%+v FadeIn=%+v", a.FadeOut, b.FadeIn)
	}
}

func TestResolveOverlapEarlyModeStartsAtTransitionZoneStart(t *testing.T) {
	a := ScheduledSnippet{Snippet: fakeSnippet(5000, 20000), ScheduledTransitionMS: 10000}
	b := ScheduledSnippet{Snippet: fakeSnippet(20000, 5000), ScheduledTransitionMS: 20000, Mode: Early}

	tun := config.Tunables{TransitionSafeZoneMS: 1000, CrossFadeMS: 3000, LongCrossFadeMS: 25000}
	resolveOverlap(&a, &b, tun)

	if a.FadeOut == nil {
		t.Fatal("expected a cross-fade window")
	}
	// working zone = [11000, 19000], overlap zone = [max(10000,0), min(30000,20000)] = [10000,20000]
	// transition zone = [11000, 19000]; EARLY starts at transition zone start.
	if a.FadeOut.MinMS != 11000 || a.FadeOut.MaxMS != 14000 {
		t.Errorf("EARLY fade = %+v, want {11000 14000}", *a.FadeOut)
	}
}

func TestResolveOverlapLateModeEndsAtTransitionZoneEnd(t *testing.T) {
	a := ScheduledSnippet{Snippet: fakeSnippet(5000, 20000), ScheduledTransitionMS: 10000}
	b := ScheduledSnippet{Snippet: fakeSnippet(20000, 5000), ScheduledTransitionMS: 20000, Mode: Late}

	tun := config.Tunables{TransitionSafeZoneMS: 1000, CrossFadeMS: 3000, LongCrossFadeMS: 25000}
	resolveOverlap(&a, &b, tun)

	if a.FadeOut == nil {
		t.Fatal("expected a cross-fade window")
	}
	if a.FadeOut.MaxMS != 19000 || a.FadeOut.MinMS != 16000 {
		t.Errorf("LATE fade = %+v, want {16000 19000}", *a.FadeOut)
	}
}

func TestResolveOverlapSlowModeUsesLongCrossFade(t *testing.T) {
	a := ScheduledSnippet{Snippet: fakeSnippet(5000, 40000), ScheduledTransitionMS: 10000}
	b := ScheduledSnippet{Snippet: fakeSnippet(40000, 5000), ScheduledTransitionMS: 40000, Mode: Slow}

	tun := config.Tunables{TransitionSafeZoneMS: 1000, CrossFadeMS: 3000, LongCrossFadeMS: 25000}
	resolveOverlap(&a, &b, tun)

	if a.FadeOut == nil {
		t.Fatal("expected a cross-fade window")
	}
	if a.FadeOut.MaxMS-a.FadeOut.MinMS != 25000 {
		t.Errorf("SLOW fade length = %d, want 25000", a.FadeOut.MaxMS-a.FadeOut.MinMS)
	}
}

func TestGainCurveDefaultsToLinear(t *testing.T) {
	curve := gainCurve("")
	if got := curve(0.25); got != 0.25 {
		t.Errorf("default curve(0.25) = %v, want 0.25 (linear)", got)
	}
}

func TestGainCurveSmoothstepMatchesAudioPackage(t *testing.T) {
	curve := gainCurve("smoothstep")
	for _, x := range []float64{0, 0.25, 0.5, 0.75, 1} {
		if got, want := curve(x), audio.Smoothstep(x); got != want {
			t.Errorf("gainCurve(\"smoothstep\")(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestRenderAppliesConfiguredFadeCurve(t *testing.T) {
	format := audio.Format{SampleRate: 1000, Channels: 1, BitDepth: 16} // 1 sample/ms, mono
	samples := make([]int16, 20000)
	for i := range samples {
		samples[i] = 32767
	}
	song := snippet.NewSongFromSegment("a", audio.Segment{Samples: samples, Format: format}, []snippet.PhaseMarker{
		{StartMS: 0, Genre: "low"},
		{StartMS: 5000, Genre: "high"},
	})
	snip := song.Snippets()[0]

	plan := &Plan{Snippets: []ScheduledSnippet{
		{
			Snippet:               snip,
			ScheduledTransitionMS: 5000,
			FadeIn:                &Window{MinMS: 4000, MaxMS: 5000},
		},
	}}

	linear := Render(plan, format, config.Tunables{FadeCurve: "linear"})
	smooth := Render(plan, format, config.Tunables{FadeCurve: "smoothstep"})

	// A quarter of the way through the fade-in window, smoothstep's
	// gain (3t^2-2t^3) sits below linear's t, so the rendered sample
	// must be quieter under the smoothstep curve.
	idx := 4250
	if !(smooth.Samples[idx] < linear.Samples[idx]) {
		t.Errorf("smoothstep sample at t=0.25 = %d, want < linear sample %d", smooth.Samples[idx], linear.Samples[idx])
	}
}

func TestFadeWindowsContainedInSnippetBounds(t *testing.T) {
	a := ScheduledSnippet{Snippet: fakeSnippet(5000, 20000), ScheduledTransitionMS: 10000}
	b := ScheduledSnippet{Snippet: fakeSnippet(20000, 5000), ScheduledTransitionMS: 20000, Mode: Medium}

	tun := config.Tunables{TransitionSafeZoneMS: 1000, CrossFadeMS: 3000, LongCrossFadeMS: 25000}
	resolveOverlap(&a, &b, tun)

	if a.FadeOut.MinMS < a.EarliestStart() || a.FadeOut.MaxMS > a.LatestEnd() {
		t.Errorf("A fade window %+v escapes [%d, %d]", *a.FadeOut, a.EarliestStart(), a.LatestEnd())
	}
	if b.FadeIn.MinMS < b.EarliestStart() || b.FadeIn.MaxMS > b.LatestEnd() {
		t.Errorf("B fade window %+v escapes [%d, %d]", *b.FadeIn, b.EarliestStart(), b.LatestEnd())
	}
	if a.FadeOut.MaxMS > b.FadeIn.MinMS+1 && *a.FadeOut != *b.FadeIn {
		t.Errorf("A.FadeOut = %+v must equal B.FadeIn = %+v (shared fade window)", *a.FadeOut, *b.FadeIn)
	}
}
