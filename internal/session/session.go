// Package session implements the Session Coordinator: ties together
// the consolidator, mix planner, and stream player for one vehicle's
// forecast stream, driving the render-and-hot-swap loop on each
// incoming forecast (spec.md section 4.H).
//
// Grounded on original_source/soundsride/session.py's
// schedule_mix_plan/update_mix_plan (ThreadPoolExecutor(3)-dispatched
// visualization/log write, self.lock.locked() guard), restructured per
// spec.md section 5 onto internal/workerpool and internal/trylock.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/soundsride/soundsrided/internal/audio"
	"github.com/soundsride/soundsrided/internal/classify"
	"github.com/soundsride/soundsrided/internal/config"
	"github.com/soundsride/soundsrided/internal/consolidate"
	"github.com/soundsride/soundsrided/internal/mixplan"
	"github.com/soundsride/soundsrided/internal/player"
	"github.com/soundsride/soundsrided/internal/sessionerr"
	"github.com/soundsride/soundsrided/internal/snippet"
	"github.com/soundsride/soundsrided/internal/stream"
	"github.com/soundsride/soundsrided/internal/transition"
	"github.com/soundsride/soundsrided/internal/trylock"
	"github.com/soundsride/soundsrided/internal/vehicle"
	"github.com/soundsride/soundsrided/internal/viz"
	"github.com/soundsride/soundsrided/internal/workerpool"
)

// RawTransition is one entry of an UpdateTransitionSpec RPC payload
// (spec.md section 6), before the seconds->ms conversion and
// negative-ETT drop.
type RawTransition struct {
	TransitionID                      uint64
	TransitionToGenre                 string
	EstimatedTimeToTransitionSec      float64
	EstimatedGeoDistanceToTransitionM float64
}

// RawForecast is an UpdateTransitionSpec RPC payload: ordering is
// strictly by list position (spec.md section 6).
type RawForecast struct {
	Transitions []RawTransition
}

// Session bundles one vehicle's consolidator, mix plan, and playback
// state, serialized by a try-lock per spec.md section 5.
type Session struct {
	ID uint32

	logger  *log.Logger
	pool    *workerpool.Pool
	lib     *snippet.Library
	tun     *config.Atomic
	logDir  string
	logID   uuid.UUID
	posSrc  vehicle.PositionSource

	lock         trylock.Mutex
	consolidator *consolidate.Consolidator
	plan         *mixplan.Plan
	playback     *player.PlaybackState
	playerLoop   *player.Player

	// Broadcaster fans the rendered PCM out to WebRTC/HTTP transports
	// (internal/stream) and, via rpcListener below, feeds the pull-style
	// GetChunk RPC (spec.md section 6) its own lagging view of the
	// stream.
	Broadcaster *stream.Broadcaster

	rpcListener *stream.Listener
	chunkMu     sync.RWMutex
	lastChunk   []byte
	frameID     atomic.Uint64

	originWallMS int64 // 0 until the first non-empty forecast arrives
	requestSeq   atomic.Uint64
}

// New creates a Session. lib and tun are shared across every session
// in the registry; logDir is the root session-log directory (spec.md
// section 6's `log/<session_log_id>/<request_log_id>.json` layout).
// posSrc backs the GetPosition RPC; pass vehicle.Unconfigured{} where
// no real vehicle-data client (spec.md section 1, out of scope) is
// wired up.
func New(id uint32, lib *snippet.Library, tun *config.Atomic, pool *workerpool.Pool, logDir string, posSrc vehicle.PositionSource, logger *log.Logger) *Session {
	t := tun.Load()
	broadcaster := stream.NewBroadcaster()

	s := &Session{
		ID:           id,
		logger:       logger.With("session_id", id),
		pool:         pool,
		lib:          lib,
		tun:          tun,
		logDir:       logDir,
		logID:        uuid.New(),
		posSrc:       posSrc,
		consolidator: consolidate.New(classify.Tolerances{DeviationToleranceMS: t.DeviationToleranceMS, HotZoneEntranceMS: t.HotZoneEntranceOrInf()}),
		playerLoop:   player.New(broadcaster, t.ChunkLengthMS),
		Broadcaster:  broadcaster,
		rpcListener:  broadcaster.Subscribe(),
	}
	go s.drainRPCListener()
	return s
}

// GetPosition reports the vehicle's last known position, per spec.md
// section 6's GetPosition RPC.
func (s *Session) GetPosition(ctx context.Context) (vehicle.Position, error) {
	return s.posSrc.Position(ctx)
}

// drainRPCListener keeps lastChunk/frameID current for the pull-style
// GetChunk RPC (spec.md section 6), which has no analogue to the
// push-style WebRTC/HTTP listeners internal/stream otherwise serves.
func (s *Session) drainRPCListener() {
	for chunk := range s.rpcListener.C {
		s.chunkMu.Lock()
		s.lastChunk = audio.SamplesToFloat32LE(chunk)
		s.chunkMu.Unlock()
		s.frameID.Add(1)
	}
}

// GetChunk returns the most recently rendered PCM chunk as float32LE
// bytes, plus the frame id it was tagged with, per spec.md section 6's
// GetChunk RPC. ok is false if no chunk has been produced yet.
func (s *Session) GetChunk() (firstFrameID uint64, chunk []byte, ok bool) {
	s.chunkMu.RLock()
	defer s.chunkMu.RUnlock()
	if s.lastChunk == nil {
		return 0, nil, false
	}
	return s.frameID.Load(), s.lastChunk, true
}

// HandleForecast implements spec.md section 4.H's six steps. wallMS is
// the caller's wall-clock millisecond reading at receipt. Returns
// sessionerr.ErrSessionBusy if the coordinator lock is already held
// (the forecast is dropped, not queued), or sessionerr.ErrMalformedForecast
// if raw parses to an invalid TransitionSpec.
func (s *Session) HandleForecast(ctx context.Context, wallMS int64, raw RawForecast) error {
	if !s.lock.TryAcquire() {
		return sessionerr.ErrSessionBusy
	}
	defer s.lock.Release()

	entries := parseForecast(raw)

	if s.originWallMS == 0 && len(entries) > 0 {
		s.originWallMS = wallMS
	}
	if s.originWallMS == 0 {
		// No non-empty forecast has arrived yet; nothing to anchor
		// offsets against.
		return nil
	}
	nowMS := wallMS - s.originWallMS

	spec, err := transition.New(nowMS, entries)
	if err != nil {
		return err
	}

	strategy, ok := s.consolidator.Update(nowMS, spec)
	if !ok {
		// duplicate actual transition, already-passed id: no-op.
		return nil
	}

	if !requiresReplan(strategy) {
		return nil
	}

	tun := s.tun.Load()
	newPlan, err := mixplan.Build(s.consolidator.Get(), nowMS, s.lib, s.plan, tun)
	if err != nil {
		return err
	}
	s.plan = newPlan

	segment := mixplan.Render(newPlan, s.lib.Format, tun)

	if s.playback == nil {
		state, err := s.playerLoop.Start(ctx, segment)
		if err != nil {
			return err
		}
		s.playback = state
	} else if err := s.playback.Swap(segment); err != nil {
		return err
	}

	s.dispatchLogging(raw, newPlan)

	return nil
}

// requiresReplan mirrors spec.md section 4.H step 6: re-plan whenever
// the strategy is one the classifier's decision table marks
// action_required (internal/classify.Classify).
func requiresReplan(strategy classify.Strategy) bool {
	switch strategy {
	case classify.PassedFinalTransition, classify.Start, classify.Delay,
		classify.Accelerate, classify.RedispatchMissedTransition, classify.Passed:
		return true
	default:
		return false
	}
}

// dispatchLogging writes the session log entry (forecast + plan
// visualization) on the shared worker pool so a slow disk never stalls
// the coordinator, per spec.md section 5 and grounded on
// original_source/soundsride/session.py's ThreadPoolExecutor(3) log
// dispatch.
func (s *Session) dispatchLogging(raw RawForecast, plan *mixplan.Plan) {
	seq := s.requestSeq.Add(1)
	dir := filepath.Join(s.logDir, s.logID.String())

	if !s.pool.Submit(func() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("session log mkdir", "err", err)
			return
		}

		jsonPath := filepath.Join(dir, fmt.Sprintf("%d.json", seq))
		f, err := os.Create(jsonPath)
		if err == nil {
			if err := json.NewEncoder(f).Encode(raw); err != nil {
				s.logger.Error("session log write forecast", "err", err)
			}
			f.Close()
		} else {
			s.logger.Error("session log create forecast file", "err", err)
		}

		var buf bytes.Buffer
		if err := viz.Render(plan, viz.DefaultOptions(), &buf); err != nil {
			s.logger.Error("session log render viz", "err", err)
			return
		}
		pngPath := filepath.Join(dir, fmt.Sprintf("%d.png", seq))
		if err := os.WriteFile(pngPath, buf.Bytes(), 0o644); err != nil {
			s.logger.Error("session log write viz", "err", err)
		}
	}) {
		s.logger.Warn("session log dropped, worker pool queue full")
	}
}

// Plan returns the current mix plan, or nil if none has been built
// yet.
func (s *Session) Plan() *mixplan.Plan { return s.plan }

// Playback returns the current playback state, or nil if playback
// hasn't started yet.
func (s *Session) Playback() *player.PlaybackState { return s.playback }

// parseForecast converts an RPC payload into transition.Entry values:
// drops entries with negative estimated time to transition (policy =
// skip, spec.md section 6), converts seconds to milliseconds, and
// preserves strict list-position ordering.
func parseForecast(raw RawForecast) []transition.Entry {
	out := make([]transition.Entry, 0, len(raw.Transitions))
	for _, t := range raw.Transitions {
		if t.EstimatedTimeToTransitionSec < 0 {
			continue
		}
		out = append(out, transition.Entry{
			ID:        t.TransitionID,
			OffsetMS:  int64(t.EstimatedTimeToTransitionSec * 1000),
			PostGenre: t.TransitionToGenre,
		})
	}
	return out
}
