// Package scheduler runs background work units with per-name
// de-duplication and a connectivity constraint, and decides when a sync
// pass is requested.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// Work is a unit of background work.
type Work func(ctx context.Context) error

type DedupePolicy int

const (
	// KeepExisting drops the request while a unit with the same name is
	// queued or running.
	KeepExisting DedupePolicy = iota
	// Replace swaps the work of a queued unit, or schedules one follow-up
	// run of a running one.
	Replace
)

// Scheduler enqueues uniquely named work.
type Scheduler interface {
	// EnqueueUnique reports whether the request was accepted.
	EnqueueUnique(name string, policy DedupePolicy, work Work) bool
}

// Connectivity gates work on network availability.
type Connectivity interface {
	Online() bool
	// WaitOnline blocks until the network is reachable or ctx is done.
	WaitOnline(ctx context.Context) error
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool                     { return true }
func (alwaysOnline) WaitOnline(context.Context) error { return nil }

// AlwaysOnline is a Connectivity without constraint.
var AlwaysOnline Connectivity = alwaysOnline{}

type unit struct {
	work    Work
	running bool
	rerun   bool
}

// Queue is an in-process Scheduler. Each name has at most one goroutine,
// so at most one instance of a unit runs at any time.
type Queue struct {
	ctx  context.Context
	conn Connectivity
	log  logging.Logger

	mu    sync.Mutex
	units map[string]*unit
	wg    sync.WaitGroup
}

var _ Scheduler = (*Queue)(nil)

// NewQueue returns a queue whose work runs under ctx.
func NewQueue(ctx context.Context, conn Connectivity, log logging.Logger) *Queue {
	return &Queue{
		ctx:   ctx,
		conn:  conn,
		log:   log.With("component", "scheduler"),
		units: make(map[string]*unit),
	}
}

func (q *Queue) EnqueueUnique(name string, policy DedupePolicy, work Work) bool {
	if q.ctx.Err() != nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if u, ok := q.units[name]; ok {
		if policy == KeepExisting {
			return false
		}
		u.work = work
		if u.running {
			u.rerun = true
		}
		return true
	}

	u := &unit{work: work}
	q.units[name] = u
	q.wg.Add(1)
	go q.loop(name, u)
	return true
}

// Pending reports whether a unit named name is queued or running.
func (q *Queue) Pending(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.units[name]
	return ok
}

// Wait blocks until every accepted unit has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) loop(name string, u *unit) {
	defer q.wg.Done()
	log := q.log.With("unit", name)

	for {
		if err := q.conn.WaitOnline(q.ctx); err != nil {
			q.mu.Lock()
			delete(q.units, name)
			q.mu.Unlock()
			return
		}

		q.mu.Lock()
		u.running = true
		work := u.work
		q.mu.Unlock()

		if err := q.run(work); err != nil {
			log.Warn(q.ctx, "work unit failed", "error", err)
		}

		q.mu.Lock()
		u.running = false
		if !u.rerun || q.ctx.Err() != nil {
			delete(q.units, name)
			q.mu.Unlock()
			return
		}
		u.rerun = false
		q.mu.Unlock()
	}
}

func (q *Queue) run(work Work) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return work(q.ctx)
}
