package trylock

import "testing"

func TestTryAcquireSucceedsWhenFree(t *testing.T) {
	var m Mutex
	if !m.TryAcquire() {
		t.Fatal("expected TryAcquire to succeed on a free mutex")
	}
	m.Release()
}

func TestTryAcquireFailsWhenHeld(t *testing.T) {
	var m Mutex
	if !m.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}
	if m.TryAcquire() {
		t.Fatal("expected second TryAcquire to fail while held")
	}
	m.Release()
}

func TestTryAcquireSucceedsAfterRelease(t *testing.T) {
	var m Mutex
	if !m.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}
	m.Release()
	if !m.TryAcquire() {
		t.Fatal("expected TryAcquire to succeed again after Release")
	}
	m.Release()
}
