package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// Pinger probes the server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher polls the server and tracks whether it is reachable. It starts
// offline until the first successful probe.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	mu       sync.Mutex
	online   bool
	wake     chan struct{}
	onOnline func()
}

var _ Connectivity = (*Watcher)(nil)

func NewWatcher(p Pinger, interval, timeout time.Duration, log logging.Logger) *Watcher {
	return &Watcher{
		pinger:   p,
		interval: interval,
		timeout:  timeout,
		log:      log.With("component", "connectivity"),
		wake:     make(chan struct{}),
	}
}

// OnOnline registers fn to be called on every offline to online edge.
func (w *Watcher) OnOnline(fn func()) {
	w.mu.Lock()
	w.onOnline = fn
	w.mu.Unlock()
}

func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

func (w *Watcher) WaitOnline(ctx context.Context) error {
	w.mu.Lock()
	if w.online {
		w.mu.Unlock()
		return nil
	}
	wake := w.wake
	w.mu.Unlock()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check probes once and updates the state.
func (w *Watcher) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.pinger.Ping(pctx)
	cancel()
	if err != nil && ctx.Err() != nil {
		return w.Online()
	}
	w.set(ctx, err == nil)
	return err == nil
}

// Run probes immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) set(ctx context.Context, online bool) {
	w.mu.Lock()
	if w.online == online {
		w.mu.Unlock()
		return
	}
	w.online = online
	var fire func()
	if online {
		close(w.wake)
		fire = w.onOnline
	} else {
		w.wake = make(chan struct{})
	}
	w.mu.Unlock()

	if online {
		w.log.Info(ctx, "switched to online mode")
	} else {
		w.log.Info(ctx, "switched to offline mode")
	}
	if fire != nil {
		fire()
	}
}
