package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soundsride/soundsrided/internal/audio"
)

// captureDevice is a test Device that records every write, per
// spec.md section 9's note that a test backend should be able to
// capture written bytes for property checks.
type captureDevice struct {
	mu       sync.Mutex
	opened   audio.Format
	writes   [][]byte
	closed   bool
	writeErr error
}

func (d *captureDevice) Open(format audio.Format) error {
	d.opened = format
	return nil
}

func (d *captureDevice) Write(pcm []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	d.writes = append(d.writes, cp)
	return nil
}

func (d *captureDevice) Close() error {
	d.closed = true
	return nil
}

func (d *captureDevice) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func testSegment(durationMS int64, format audio.Format) audio.Segment {
	perMS := int64(format.Channels) * int64(format.SampleRate) / 1000
	return audio.Segment{Samples: make([]int16, durationMS*perMS), Format: format}
}

func waitForState(t *testing.T, state *PlaybackState, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if state.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %s after %s, want %s", state.State(), timeout, want)
}

func TestPlayerPlaysToFinishedAndAdvancesPlayedMS(t *testing.T) {
	format := audio.Format{SampleRate: 1000, Channels: 1, BitDepth: 16}
	segment := testSegment(1000, format) // 1000ms at chunk=1ms -> 1000 chunks
	device := &captureDevice{}
	pl := New(device, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := pl.Start(ctx, segment)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitForState(t, state, StateFinished, 2*time.Second)

	if got := state.PlayedMS(); got != 1000 {
		t.Errorf("PlayedMS() = %d, want 1000", got)
	}
	if !device.closed {
		t.Error("expected device to be closed on finish")
	}
}

func TestPlayerRequestStopTerminatesLoop(t *testing.T) {
	format := audio.Format{SampleRate: 1000, Channels: 1, BitDepth: 16}
	segment := testSegment(100000, format)
	device := &captureDevice{}
	pl := New(device, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := pl.Start(ctx, segment)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	state.RequestStop()

	waitForState(t, state, StateFinished, 2*time.Second)

	played := state.PlayedMS()
	if played <= 0 || played >= 100000 {
		t.Errorf("PlayedMS() = %d, expected a partial play well short of the full segment", played)
	}
}

func TestPlayerSwapAdoptsLongerSegment(t *testing.T) {
	format := audio.Format{SampleRate: 1000, Channels: 1, BitDepth: 16}
	initial := testSegment(500, format)
	longer := testSegment(2000, format)
	device := &captureDevice{}
	pl := New(device, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := pl.Start(ctx, initial)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := state.Swap(longer); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	// 2000 chunks of 1ms are paced in real time, so allow well over 2s.
	waitForState(t, state, StateFinished, 5*time.Second)

	if got := state.PlayedMS(); got != 2000 {
		t.Errorf("PlayedMS() = %d, want 2000 (played through the swapped-in segment)", got)
	}
}

func TestPlayerSwapRejectsShorterSegmentThanAlreadyPlayed(t *testing.T) {
	format := audio.Format{SampleRate: 1000, Channels: 1, BitDepth: 16}
	initial := testSegment(10000, format)
	shorter := testSegment(50, format)
	device := &captureDevice{}
	pl := New(device, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := pl.Start(ctx, initial)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let enough chunks play that played_ms exceeds shorter's duration.
	time.Sleep(80 * time.Millisecond)
	if err := state.Swap(shorter); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	waitForState(t, state, StateFinished, 2*time.Second)

	played := state.PlayedMS()
	if played < 50 {
		t.Errorf("PlayedMS() = %d, want at least 50 (swap should have been rejected, not rewound)", played)
	}
}

func TestPlayerSwapRejectsMismatchedFormat(t *testing.T) {
	format := audio.Format{SampleRate: 1000, Channels: 1, BitDepth: 16}
	other := audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}
	initial := testSegment(10000, format)
	mismatched := testSegment(50000, other)
	device := &captureDevice{}
	pl := New(device, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := pl.Start(ctx, initial)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := state.Swap(mismatched); err == nil {
		t.Fatal("expected Swap to reject a format mismatch")
	}

	state.RequestStop()
	waitForState(t, state, StateFinished, 2*time.Second)
}

func TestPlayerOpenErrorPropagatesAudioUnavailable(t *testing.T) {
	device := &erroringOpenDevice{}
	pl := New(device, 250)

	_, err := pl.Start(context.Background(), testSegment(100, audio.DefaultFormat))
	if err == nil {
		t.Fatal("expected an error from a device that fails to open")
	}
}

type erroringOpenDevice struct{}

func (d *erroringOpenDevice) Open(audio.Format) error { return errors.New("no such device") }
func (d *erroringOpenDevice) Write([]byte) error      { return nil }
func (d *erroringOpenDevice) Close() error             { return nil }
