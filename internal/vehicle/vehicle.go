// Package vehicle defines the boundary to the vehicle-data client that
// polls GPS, an external collaborator spec.md section 1 lists as out
// of scope for this repo ("specified only at their interface"). The
// GetPosition RPC (spec.md section 6) reports whatever that client
// last observed; this package only names the interface and a stub
// that reports the collaborator as unreachable, since no pack example
// implements GPS polling.
package vehicle

import (
	"context"

	"github.com/soundsride/soundsrided/internal/sessionerr"
)

// Position is the vehicle's last reported location.
type Position struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// PositionSource reports the vehicle's current position. Implementations
// live outside this repo's scope (spec.md section 1); soundsrided only
// depends on this interface.
type PositionSource interface {
	Position(ctx context.Context) (Position, error)
}

// Unconfigured is the default PositionSource: it always reports the
// upstream vehicle-data client as unreachable. Wiring in the real
// client is the deploying operator's job, not this repo's.
type Unconfigured struct{}

// Position always fails with sessionerr.ErrUpstreamFailure.
func (Unconfigured) Position(ctx context.Context) (Position, error) {
	return Position{}, sessionerr.ErrUpstreamFailure
}
