package workflow

import (
	"fmt"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// pendingEntry holds everything needed to resume a deferred second-factor
// interaction for one entity.
type pendingEntry struct {
	entity    *model.Entity
	options   service.FetchOptions
	processID string
	features  []model.Feature
	action    Action
	pinLength int
}

// pendingQueue is a FIFO of deferred interactions keyed by entity id.
// Activation order is insertion order. Not safe for concurrent use; the
// orchestrator's lock guards it.
type pendingQueue struct {
	entries map[string]*pendingEntry
	order   []string
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{entries: make(map[string]*pendingEntry)}
}

// put inserts or replaces the entry for its entity id. A replaced entry
// keeps its original queue position.
func (q *pendingQueue) put(e *pendingEntry) {
	id := e.entity.ID
	if _, ok := q.entries[id]; !ok {
		q.order = append(q.order, id)
	}
	q.entries[id] = e
}

func (q *pendingQueue) get(id string) (*pendingEntry, bool) {
	e, ok := q.entries[id]
	return e, ok
}

func (q *pendingQueue) remove(id string) {
	if _, ok := q.entries[id]; !ok {
		return
	}
	delete(q.entries, id)
	for i, qid := range q.order {
		if qid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// next pops the first-inserted entry, or nil when the queue is empty.
func (q *pendingQueue) next() *pendingEntry {
	if len(q.order) == 0 {
		return nil
	}
	id := q.order[0]
	e := q.entries[id]
	q.remove(id)
	return e
}

func (q *pendingQueue) ids() []string {
	out := make([]string, len(q.order))
	copy(out, q.order)
	return out
}

func (q *pendingQueue) len() int {
	return len(q.order)
}

// ActivateNext promotes the first-inserted pending entry to the active
// session, preserving its continuation token, second-factor length, and
// options. Returns false when nothing is queued.
func (o *Orchestrator) ActivateNext() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e := o.pending.next()
	if e == nil {
		return false
	}
	o.activateLocked(e)
	return true
}

// SwitchActive promotes a specific queued entity to the active session. The
// caller is responsible for having resolved or abandoned the previous
// active entity; it is not re-enqueued.
func (o *Orchestrator) SwitchActive(entityID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.pending.get(entityID)
	if !ok {
		return fmt.Errorf("entity %s: %w", entityID, common.ErrNotFound)
	}
	o.pending.remove(entityID)
	o.activateLocked(e)
	return nil
}

// PendingEntityIDs lists queued entity ids in activation order, excluding
// the active session's entity.
func (o *Orchestrator) PendingEntityIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := o.pending.ids()
	if o.session.entity == nil {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		if id != o.session.entity.ID {
			out = append(out, id)
		}
	}
	return out
}
