// Package store wraps the record repository with change notification so
// the presentation layer can observe live snapshots of a query.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// Observable is a records.Repository that publishes a signal after every
// committed write. Reads pass through.
type Observable struct {
	records.Repository

	log logging.Logger

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

var _ records.Repository = (*Observable)(nil)

func NewObservable(repo records.Repository, log logging.Logger) *Observable {
	return &Observable{
		Repository: repo,
		log:        log,
		subs:       make(map[chan struct{}]struct{}),
	}
}

func (o *Observable) Upsert(ctx context.Context, rec *models.Record) error {
	if err := o.Repository.Upsert(ctx, rec); err != nil {
		return err
	}
	o.publish()
	return nil
}

func (o *Observable) Delete(ctx context.Context, clientID string) error {
	if err := o.Repository.Delete(ctx, clientID); err != nil {
		return err
	}
	o.publish()
	return nil
}

func (o *Observable) MarkDeleted(ctx context.Context, clientID string, at time.Time) error {
	if err := o.Repository.MarkDeleted(ctx, clientID, at); err != nil {
		return err
	}
	o.publish()
	return nil
}

func (o *Observable) Update(ctx context.Context, clientID string, fn records.UpdateFunc) (records.Op, error) {
	op, err := o.Repository.Update(ctx, clientID, fn)
	if err != nil {
		return op, err
	}
	if op != records.OpKeep {
		o.publish()
	}
	return op, nil
}

// Observe emits the result of q now and again after every write, until ctx
// is done; then the channel is closed. Writes that happen while the
// consumer is busy are coalesced into one snapshot. Call Observe again to
// restart a stream.
func (o *Observable) Observe(ctx context.Context, q records.Query) <-chan []models.Record {
	out := make(chan []models.Record)
	signal := o.subscribe()

	go func() {
		defer close(out)
		defer o.unsubscribe(signal)

		for {
			snapshot, err := o.Repository.Query(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				o.log.Error(ctx, "observe query failed", "kind", q.Kind, "parent_id", q.ParentID, "error", err)
			} else {
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (o *Observable) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	o.mu.Unlock()
	return ch
}

func (o *Observable) unsubscribe(ch chan struct{}) {
	o.mu.Lock()
	delete(o.subs, ch)
	o.mu.Unlock()
}

func (o *Observable) publish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (o *Observable) subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
