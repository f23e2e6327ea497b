package session

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/soundsride/soundsrided/internal/config"
	"github.com/soundsride/soundsrided/internal/snippet"
	"github.com/soundsride/soundsrided/internal/vehicle"
	"github.com/soundsride/soundsrided/internal/workerpool"
)

// Registry allocates and looks up sessions by the monotonic u32 id
// StartSession returns (spec.md section 6: session_id is typed u32,
// not a uuid).
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint32]*Session
	nextID   uint32

	lib    *snippet.Library
	tun    *config.Atomic
	pool   *workerpool.Pool
	logDir string
	posSrc vehicle.PositionSource
	logger *log.Logger
}

// NewRegistry creates an empty Registry. posSrc backs every session's
// GetPosition RPC; pass vehicle.Unconfigured{} where no real
// vehicle-data client is wired up.
func NewRegistry(lib *snippet.Library, tun *config.Atomic, pool *workerpool.Pool, logDir string, posSrc vehicle.PositionSource, logger *log.Logger) *Registry {
	return &Registry{
		sessions: make(map[uint32]*Session),
		lib:      lib,
		tun:      tun,
		pool:     pool,
		logDir:   logDir,
		posSrc:   posSrc,
		logger:   logger,
	}
}

// Start allocates a new session and returns it.
func (r *Registry) Start() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	sess := New(id, r.lib, r.tun, r.pool, r.logDir, r.posSrc, r.logger)
	r.sessions[id] = sess
	return sess
}

// Get looks up a session by id.
func (r *Registry) Get(id uint32) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}
