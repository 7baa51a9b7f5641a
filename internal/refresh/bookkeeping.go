package refresh

import (
	"sync"
	"time"
)

// AttemptRecord is the outcome of the most recent silent attempt for one
// entity. Failure records carry the HTTP status when the transport exposed
// one (e.g. 429).
type AttemptRecord struct {
	At         time.Time
	HTTPStatus int
	Success    bool
}

// Bookkeeping tracks per-entity attempt outcomes for the auto-refresh
// policy. In-memory only; it does not outlive the process.
type Bookkeeping struct {
	records map[string]AttemptRecord
	mu      sync.Mutex
}

// NewBookkeeping creates empty bookkeeping.
func NewBookkeeping() *Bookkeeping {
	return &Bookkeeping{records: make(map[string]AttemptRecord)}
}

// RecordSuccess notes a successful attempt.
func (b *Bookkeeping) RecordSuccess(entityID string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[entityID] = AttemptRecord{Success: true, At: at}
}

// RecordFailure notes a failed attempt with its HTTP status, if any.
func (b *Bookkeeping) RecordFailure(entityID string, httpStatus int, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[entityID] = AttemptRecord{Success: false, At: at, HTTPStatus: httpStatus}
}

// Last returns the most recent attempt record for the entity.
func (b *Bookkeeping) Last(entityID string) (AttemptRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[entityID]
	return rec, ok
}
