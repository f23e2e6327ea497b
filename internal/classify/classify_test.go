package classify

import (
	"math"
	"testing"
)

func TestClassifyIdling(t *testing.T) {
	got := Classify(0, nil, nil, DefaultTolerances())
	if got.Strategy != Idling || got.ActionRequired {
		t.Errorf("Classify(idling) = %+v", got)
	}
}

func TestClassifyPassedFinalTransition(t *testing.T) {
	planned := &Point{ID: 1, AbsMS: 1000}
	got := Classify(2000, planned, nil, DefaultTolerances())
	if got.Strategy != PassedFinalTransition || !got.ActionRequired {
		t.Errorf("Classify(PassedFinalTransition) = %+v", got)
	}
}

func TestClassifyStart(t *testing.T) {
	actual := &Point{ID: 5, AbsMS: 10000}
	got := Classify(0, nil, actual, DefaultTolerances())
	if got.Strategy != Start || !got.ActionRequired {
		t.Errorf("Classify(Start) = %+v", got)
	}
}

func TestClassifyPassedDifferentID(t *testing.T) {
	planned := &Point{ID: 5, AbsMS: 10000}
	actual := &Point{ID: 10, AbsMS: 20000}
	got := Classify(11000, planned, actual, DefaultTolerances())
	if got.Strategy != Passed || !got.ActionRequired {
		t.Errorf("Classify(Passed) = %+v", got)
	}
}

func TestClassifyTemporise(t *testing.T) {
	tol := Tolerances{DeviationToleranceMS: 0, HotZoneEntranceMS: 15000}
	planned := &Point{ID: 5, AbsMS: 100000}
	actual := &Point{ID: 5, AbsMS: 101000}
	// now=0: d_cp=100000, d_ca=101000, both >= HZ(15000).
	got := Classify(0, planned, actual, tol)
	if got.Strategy != Temporise || got.ActionRequired {
		t.Errorf("Classify(Temporise) = %+v", got)
	}
}

func TestClassifyNeglectMisalignmentBothInHotZone(t *testing.T) {
	tol := Tolerances{DeviationToleranceMS: 1050, HotZoneEntranceMS: 15000}
	planned := &Point{ID: 5, AbsMS: 10000}
	actual := &Point{ID: 5, AbsMS: 10500}
	// now=8500: d_cp=1500, d_ca=2000, d_pa=500 < T=1050.
	got := Classify(8500, planned, actual, tol)
	if got.Strategy != NeglectMisalignment || got.ActionRequired {
		t.Errorf("Classify(NeglectMisalignment) = %+v", got)
	}
}

func TestClassifyDelayInsideHotZone(t *testing.T) {
	tol := Tolerances{DeviationToleranceMS: 1050, HotZoneEntranceMS: 15000}
	planned := &Point{ID: 5, AbsMS: 10000}
	actual := &Point{ID: 5, AbsMS: 12000}
	// now=8500: d_cp=1500, d_ca=3500, d_pa=2000 >= T=1050.
	got := Classify(8500, planned, actual, tol)
	if got.Strategy != Delay || !got.ActionRequired {
		t.Errorf("Classify(Delay) = %+v", got)
	}
}

func TestClassifyAccelerateInsideHotZone(t *testing.T) {
	tol := Tolerances{DeviationToleranceMS: 1050, HotZoneEntranceMS: 15000}
	planned := &Point{ID: 5, AbsMS: 12000}
	actual := &Point{ID: 5, AbsMS: 10000}
	// now=8500: d_cp=3500, d_ca=1500, d_pa=-2000 <= -T.
	got := Classify(8500, planned, actual, tol)
	if got.Strategy != Accelerate || !got.ActionRequired {
		t.Errorf("Classify(Accelerate) = %+v", got)
	}
}

func TestClassifyEndureMissedTransition(t *testing.T) {
	tol := Tolerances{DeviationToleranceMS: 1000, HotZoneEntranceMS: 15000}
	planned := &Point{ID: 5, AbsMS: 9000}
	actual := &Point{ID: 5, AbsMS: 9500}
	// now=9200: d_cp=-200 (<=0), d_ca=300 (>=0), d_pa=500 <= T=1000.
	got := Classify(9200, planned, actual, tol)
	if got.Strategy != EndureMissedTransition || got.ActionRequired {
		t.Errorf("Classify(EndureMissedTransition) = %+v", got)
	}
}

func TestClassifyRedispatchMissedTransition(t *testing.T) {
	tol := Tolerances{DeviationToleranceMS: 200, HotZoneEntranceMS: 15000}
	planned := &Point{ID: 5, AbsMS: 9000}
	actual := &Point{ID: 5, AbsMS: 9500}
	// now=9200: d_cp=-200 (<=0), d_ca=300 (>=0), d_pa=500 >= T=200.
	got := Classify(9200, planned, actual, tol)
	if got.Strategy != RedispatchMissedTransition || !got.ActionRequired {
		t.Errorf("Classify(RedispatchMissedTransition) = %+v", got)
	}
}

func TestClassifyTemporiseDelayBoundary(t *testing.T) {
	// At d_pa = T exactly, with both in the hot zone, the spec's
	// right-closed tolerance means Delay, not NeglectMisalignment.
	tol := Tolerances{DeviationToleranceMS: 500, HotZoneEntranceMS: 15000}
	planned := &Point{ID: 5, AbsMS: 10000}
	actual := &Point{ID: 5, AbsMS: 10500}
	got := Classify(8500, planned, actual, tol)
	if got.Strategy != Delay {
		t.Errorf("at d_pa == T boundary, Classify = %+v, want Delay", got)
	}
}

func TestDefaultTolerancesHotZoneIsEffectivelyInfinite(t *testing.T) {
	tol := DefaultTolerances()
	if tol.HotZoneEntranceMS != math.MaxInt64 {
		t.Errorf("HotZoneEntranceMS = %d, want math.MaxInt64", tol.HotZoneEntranceMS)
	}
}
