package businessflow

import (
	"sync"

	"github.com/google/uuid"
)

// ruleLockRegistry serializes mutations per rule id. Writes to different
// rules proceed in parallel; two writers on the same rule id queue up, which
// keeps the single-current-version invariant and version numbering safe.
// The registry is owned by the admin flow instance, not package state, so
// isolated flows in tests never contend with each other.
type ruleLockRegistry struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newRuleLockRegistry() *ruleLockRegistry {
	return &ruleLockRegistry{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// lock acquires the mutex for a rule id, creating it on first use.
// Entries are kept for the registry's lifetime; the rule set is small.
func (r *ruleLockRegistry) lock(ruleID uuid.UUID) {
	r.mu.Lock()
	m, ok := r.locks[ruleID]
	if !ok {
		m = &sync.Mutex{}
		r.locks[ruleID] = m
	}
	r.mu.Unlock()

	m.Lock()
}

func (r *ruleLockRegistry) unlock(ruleID uuid.UUID) {
	r.mu.Lock()
	m, ok := r.locks[ruleID]
	r.mu.Unlock()

	if ok {
		m.Unlock()
	}
}
