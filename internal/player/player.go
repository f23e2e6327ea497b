// Package player implements the Stream Player: a cooperative,
// chunk-driven audio output loop that can replace its segment
// mid-playback without an audible gap and without rewinding
// (spec.md section 4.G).
//
// Control flow grounded on original_source/soundsride/player.py's
// PlaybackState/Player.play_stream; the goroutine-plus-ticker
// concurrency idiom is grounded on the teacher's
// internal/audio/pipeline.go (Pipeline.Run/sendFrame). Per spec.md
// section 9's "audio backend abstraction" design note, the output
// device is a narrow capability interface rather than a concrete
// sound-card binding, so a test backend can capture written bytes.
package player

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/soundsride/soundsrided/internal/audio"
	"github.com/soundsride/soundsrided/internal/sessionerr"
)

// State is PlaybackState's lifecycle (spec.md section 3).
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "idle"
	}
}

// Device is the output capability the player writes PCM bytes to.
// Opened once at the stream's sample rate/channel count, then written
// to chunk by chunk. Grounded on spec.md section 9's backend
// abstraction design note.
type Device interface {
	Open(format audio.Format) error
	Write(pcm []byte) error
	Close() error
}

// PlaybackState is shared between the audio loop and its controller
// (spec.md section 3). played_ms is written only by the audio loop;
// request_stop is set by the controller; swap_segment is a
// single-slot hand-off, written by the controller and cleared by the
// audio loop after consuming it.
type PlaybackState struct {
	playedMS    atomic.Int64
	state       atomic.Int32
	requestStop atomic.Bool
	swapSegment atomic.Pointer[audio.Segment]
	format      audio.Format
}

// PlayedMS returns the monotone count of milliseconds played so far.
func (p *PlaybackState) PlayedMS() int64 { return p.playedMS.Load() }

// State returns the loop's current lifecycle state.
func (p *PlaybackState) State() State { return State(p.state.Load()) }

// RequestStop asks the loop to terminate at the next chunk boundary.
func (p *PlaybackState) RequestStop() { p.requestStop.Store(true) }

// Swap hands off a replacement segment, adopted at the next chunk
// boundary. Overwrites any not-yet-consumed prior swap. Rejects a
// segment whose format (sample rate, channel count, sample width)
// does not match the stream already playing, per spec.md section
// 4.G's swap-compatibility requirement; the audio loop's own
// shorter-than-cursor guard is the second, independent rejection
// named there.
func (p *PlaybackState) Swap(segment audio.Segment) error {
	if segment.Format != p.format {
		return sessionerr.ErrSegmentSwapIncompatible
	}
	p.swapSegment.Store(&segment)
	return nil
}

// Player plays one audio.Segment at a time through a Device, in
// chunks of ChunkLengthMS (spec.md default 250).
type Player struct {
	Device        Device
	ChunkLengthMS int64
}

// New creates a Player. chunkLengthMS <= 0 falls back to the spec's
// default of 250ms.
func New(device Device, chunkLengthMS int64) *Player {
	if chunkLengthMS <= 0 {
		chunkLengthMS = 250
	}
	return &Player{Device: device, ChunkLengthMS: chunkLengthMS}
}

// Start opens the device at segment's format and begins the
// cooperative playback loop in a new goroutine. Returns immediately
// with the PlaybackState the caller uses to monitor and control
// playback; the loop itself runs until request_stop, a too-short
// swap, end of segment, or ctx cancellation.
func (pl *Player) Start(ctx context.Context, segment audio.Segment) (*PlaybackState, error) {
	if err := pl.Device.Open(segment.Format); err != nil {
		return nil, fmt.Errorf("player: open device: %w: %w", sessionerr.ErrAudioUnavailable, err)
	}

	state := &PlaybackState{format: segment.Format}
	state.state.Store(int32(StateRunning))

	go pl.run(ctx, segment, state)

	return state, nil
}

func (pl *Player) run(ctx context.Context, segment audio.Segment, state *PlaybackState) {
	defer func() {
		state.state.Store(int32(StateFinished))
		pl.Device.Close()
	}()

	ticker := time.NewTicker(time.Duration(pl.ChunkLengthMS) * time.Millisecond)
	defer ticker.Stop()

	var i int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// 1. request_stop check.
		if state.requestStop.Load() {
			return
		}

		// 2. swap_segment adoption.
		if swapped := state.swapSegment.Swap(nil); swapped != nil {
			candidate := *swapped
			if candidate.DurationMS() < state.PlayedMS() {
				// Cannot swap in a segment shorter than what's
				// already played.
				return
			}
			segment = candidate
		}

		// 3. compute [left, right) window.
		leftMS := i * pl.ChunkLengthMS
		rightMS := leftMS + pl.ChunkLengthMS
		totalMS := segment.DurationMS()
		if rightMS > totalMS {
			rightMS = totalMS
		}
		if leftMS >= rightMS {
			return
		}

		// 4. write, blocking.
		chunk := segment.Slice(leftMS, rightMS)
		if err := pl.Device.Write(audio.SamplesToBytes(chunk.Samples)); err != nil {
			return
		}

		// 5. advance played_ms.
		state.playedMS.Add(rightMS - leftMS)
		i++
	}
}
