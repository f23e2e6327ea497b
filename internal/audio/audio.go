// Package audio holds PCM sample-format constants and the in-memory
// Segment type shared by the snippet library, mix planner, and player.
package audio

// Format describes a PCM stream's sample rate, channel count, and bit
// depth. A Segment and a Library both carry one Format, and a hot-swap
// into a Segment with a different Format is rejected (spec: segment
// swap requires matching sample rate, channel count, and sample width).
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int // bits per sample, PCM int16 throughout this module
}

// DefaultFormat matches the teacher's fixed-format radio pipeline
// (48 kHz, stereo, 16-bit). No code path falls back to it; it is a
// named reference value.
var DefaultFormat = Format{SampleRate: 48000, Channels: 2, BitDepth: 16}

// Segment is a rendered, in-memory PCM buffer: interleaved int16
// samples at a known Format. Segments are immutable after construction
// and shared by reference across the render thread and audio thread.
type Segment struct {
	Samples []int16
	Format  Format
}

// DurationMS returns the segment's length in milliseconds.
func (s Segment) DurationMS() int64 {
	frameCount := s.Format.Channels
	if frameCount == 0 {
		return 0
	}
	samplesPerChannel := len(s.Samples) / frameCount
	if s.Format.SampleRate == 0 {
		return 0
	}
	return int64(samplesPerChannel) * 1000 / int64(s.Format.SampleRate)
}

// Slice returns the portion of the segment between startMS and endMS,
// clamped to the segment's bounds. Used by the mix planner's overlay
// step to pull a snippet's audio into the base buffer.
func (s Segment) Slice(startMS, endMS int64) Segment {
	perMS := int64(s.Format.Channels) * int64(s.Format.SampleRate) / 1000
	start := startMS * perMS
	end := endMS * perMS
	if start < 0 {
		start = 0
	}
	if end > int64(len(s.Samples)) {
		end = int64(len(s.Samples))
	}
	if start > end {
		start = end
	}
	return Segment{Samples: s.Samples[start:end], Format: s.Format}
}

// CompatibleWith reports whether two segments share a sample rate,
// channel count, and bit depth, the precondition for a hot swap.
func (s Segment) CompatibleWith(other Segment) bool {
	return s.Format == other.Format
}
