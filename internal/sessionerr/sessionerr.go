// Package sessionerr defines the error kinds shared across the session
// coordinator, planner, and player, and maps them to RPC-shaped status
// kinds at the API boundary.
package sessionerr

import "errors"

var (
	// ErrMalformedForecast: non-monotone offsets, duplicate ids, or an
	// unrecognized genre. Rejected at the RPC boundary; no state mutation.
	ErrMalformedForecast = errors.New("malformed forecast")

	// ErrInvalidSchedule: scheduled transition <= 0, or a fade interval
	// violates ordering. The planner refuses to emit the plan.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInfeasibleCrossfade: working zone shorter than the configured
	// cross-fade. Recovered locally by the hard-cut fallback; callers
	// that see this returned from a lower layer indicate a bug, since
	// the planner handles it before it escapes.
	ErrInfeasibleCrossfade = errors.New("infeasible crossfade")

	// ErrSegmentSwapIncompatible: hot-swap target has a mismatched
	// sample rate/channel count/width, or is shorter than the current
	// playback cursor.
	ErrSegmentSwapIncompatible = errors.New("incompatible segment swap")

	// ErrSessionBusy: coordinator try-lock failed. Dropped silently at
	// user level; an observability event is emitted by the caller.
	ErrSessionBusy = errors.New("session busy")

	// ErrUpstreamFailure: RPC errors from the vehicle client.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrSessionNotFound: unknown session_id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAudioUnavailable: audio subsystem not initialized.
	ErrAudioUnavailable = errors.New("audio subsystem unavailable")
)

// Kind is the RPC-shaped status kind an error maps to.
type Kind string

const (
	KindInvalidArgument Kind = "InvalidArgument"
	KindNotFound        Kind = "NotFound"
	KindUnavailable     Kind = "Unavailable"
	KindInternal        Kind = "Internal"
	KindOK              Kind = "OK"
)

// Classify maps an error to its RPC status kind, following spec.md
// section 6's error-kind table.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrMalformedForecast), errors.Is(err, ErrInvalidSchedule):
		return KindInvalidArgument
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAudioUnavailable), errors.Is(err, ErrUpstreamFailure):
		return KindUnavailable
	default:
		return KindInternal
	}
}
