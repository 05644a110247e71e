// Package resultpool implements a bounded, expiring task_id -> result map,
// plus the bounded-poll wait protocol _get relies on to block until a
// result lands.
package resultpool

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nodeforge/agentplatform/internal/message"
)

// ErrTaskExpired is returned by Get when task_id is unknown or its entry
// has aged out of the pool.
var ErrTaskExpired = errors.New("resultpool: task expired or unknown")

const (
	// DefaultMaxLen is the default pool capacity.
	DefaultMaxLen = 8192
	// DefaultMaxAge is the default per-entry TTL.
	DefaultMaxAge = 30 * time.Minute
)

// pollInterval bounds how long Get waits between checks of a pending entry.
// It is a var, not a const, so tests can shrink it instead of waiting a
// full second per assertion.
var pollInterval = time.Second

type entry struct {
	taskID   int64
	insertAt time.Time
	done     bool
	result   *message.Msg
	listElem *list.Element // position in the insertion-order eviction list
}

// Pool is a concurrency-safe, capacity- and age-bounded map from task_id to
// either a pending placeholder or a completed Msg.
type Pool struct {
	maxLen int
	maxAge time.Duration

	mu      sync.Mutex
	entries map[int64]*entry
	order   *list.List // oldest-first list of *entry, for capacity eviction
}

// New creates a Pool with the given capacity and per-entry TTL. A maxLen of
// 0 or less uses DefaultMaxLen; a maxAge of 0 or less uses DefaultMaxAge.
func New(maxLen int, maxAge time.Duration) *Pool {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Pool{
		maxLen:  maxLen,
		maxAge:  maxAge,
		entries: make(map[int64]*entry),
		order:   list.New(),
	}
}

// Submit registers task_id as pending. Must be called before any goroutine
// calls Get or Complete for that task_id.
func (p *Pool) Submit(taskID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictExpiredLocked()

	e := &entry{
		taskID:   taskID,
		insertAt: time.Now(),
	}
	e.listElem = p.order.PushBack(e)
	p.entries[taskID] = e

	if len(p.entries) > p.maxLen {
		p.evictOldestLocked()
	}
}

// Complete stores the result for a pending task. Calling Complete for an
// unknown task_id (already evicted) is a no-op.
func (p *Pool) Complete(taskID int64, result *message.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[taskID]
	if !ok {
		return
	}
	e.done = true
	e.result = result
}

// Get blocks until task_id resolves, expires, or ctx is cancelled. A
// pending task is polled on a bounded interval so an evicted pending entry
// does not strand the caller.
func (p *Pool) Get(ctx context.Context, taskID int64) (*message.Msg, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		result, done, err := p.peek(taskID)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// peek reports whether taskID is done (returning its result), expired
// (returning ErrTaskExpired), or still pending (done == false, err == nil).
func (p *Pool) peek(taskID int64) (result *message.Msg, done bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[taskID]
	if !ok {
		return nil, false, ErrTaskExpired
	}
	if p.expiredLocked(e) {
		p.removeLocked(e)
		return nil, false, ErrTaskExpired
	}
	if e.done {
		return e.result, true, nil
	}
	return nil, false, nil
}

// Len returns the current number of entries (pending + done, unexpired or
// not yet swept). Exposed for the Prometheus gauge in internal/obsmetrics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// SweepExpired evicts every entry older than maxAge. Run on a schedule by
// internal/janitor, so a pending task whose caller never calls Get still
// frees memory.
func (p *Pool) SweepExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for elem := p.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry)
		if p.expiredLocked(e) {
			p.removeLocked(e)
			removed++
		}
		elem = next
	}
	return removed
}

func (p *Pool) expiredLocked(e *entry) bool {
	return time.Since(e.insertAt) > p.maxAge
}

func (p *Pool) removeLocked(e *entry) {
	delete(p.entries, e.taskID)
	p.order.Remove(e.listElem)
}

// evictExpiredLocked drops already-expired entries before a new Submit, so
// the capacity check below only ever evicts live entries. The order list is
// oldest-first, so this can stop at the first live entry.
func (p *Pool) evictExpiredLocked() {
	for elem := p.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry)
		if !p.expiredLocked(e) {
			break
		}
		p.removeLocked(e)
		elem = next
	}
}

// evictOldestLocked drops the single oldest entry (by insertion time), once
// an insert would push the pool past capacity.
func (p *Pool) evictOldestLocked() {
	front := p.order.Front()
	if front == nil {
		return
	}
	p.removeLocked(front.Value.(*entry))
}
