// Package trylock provides a non-reentrant mutex with try-lock
// semantics, the one concurrency primitive spec.md section 5 requires
// directly (per-session coordinator mutations: contention drops the
// incoming forecast rather than queueing it). No example repo in the
// pack implements try-lock, so this is built straight on sync.Mutex
// (Go 1.18+ stdlib, justified in DESIGN.md).
package trylock

import "sync"

// Mutex wraps sync.Mutex to expose TryLock under a session-coordinator
// friendly name.
type Mutex struct {
	mu sync.Mutex
}

// TryAcquire attempts to acquire the lock without blocking. Returns
// false if the lock is already held.
func (m *Mutex) TryAcquire() bool {
	return m.mu.TryLock()
}

// Release releases the lock. Must only be called by the goroutine
// that successfully called TryAcquire.
func (m *Mutex) Release() {
	m.mu.Unlock()
}
