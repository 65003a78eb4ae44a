package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/client"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/session"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
	"github.com/dmitrijs2005/fridgekeeper/internal/common"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// CollectionReport summarizes the pull of one collection.
type CollectionReport struct {
	Fetched int
	Applied int
	Removed int
	// Watermark is the stored watermark after the pull.
	Watermark time.Time
}

type DeltaReport struct {
	Skipped bool
	Items   CollectionReport
	Notes   CollectionReport
}

// remoteChange is one decoded entry of a delta response.
type remoteChange struct {
	clientID  string
	tombstone bool
	record    func() (models.Record, error)
	updatedAt time.Time
}

// DeltaAgent merges remote changes into the local store.
type DeltaAgent struct {
	store   records.Repository
	meta    metadata.Repository
	api     client.Client
	session session.Provider
	log     logging.Logger
	now     func() time.Time
}

func NewDeltaAgent(store records.Repository, meta metadata.Repository, api client.Client, sess session.Provider, log logging.Logger) *DeltaAgent {
	return &DeltaAgent{
		store:   store,
		meta:    meta,
		api:     api,
		session: sess,
		log:     log.With("component", "delta"),
		now:     time.Now,
	}
}

// Pull fetches items, then notes. A collection's watermark only advances
// when every change of its response was applied.
func (a *DeltaAgent) Pull(ctx context.Context) (DeltaReport, error) {
	var report DeltaReport

	sess, err := a.session.Current(ctx)
	if err != nil {
		return report, fmt.Errorf("read session: %w", err)
	}
	if !sess.CanSync(a.now()) {
		report.Skipped = true
		return report, nil
	}

	var errs []error
	report.Items, err = a.pull(ctx, models.KindItem, common.MetaItemsWatermark, a.fetchItems)
	if err != nil {
		errs = append(errs, fmt.Errorf("items: %w", err))
	}
	report.Notes, err = a.pull(ctx, models.KindNote, common.MetaNotesWatermark, a.fetchNotes)
	if err != nil {
		errs = append(errs, fmt.Errorf("notes: %w", err))
	}

	err = errors.Join(errs...)
	if errors.Is(err, client.ErrUnauthorized) {
		if rerr := a.session.ReportUnauthorized(ctx); rerr != nil {
			a.log.Error(ctx, "report unauthorized session", "error", rerr)
		}
	}
	return report, err
}

type fetchFunc func(ctx context.Context, since time.Time) ([]remoteChange, time.Time, error)

func (a *DeltaAgent) pull(ctx context.Context, kind models.Kind, key string, fetch fetchFunc) (CollectionReport, error) {
	var rep CollectionReport
	log := a.log.With("kind", kind)

	since, err := a.meta.GetTime(ctx, key)
	if err != nil {
		return rep, err
	}
	rep.Watermark = since

	changes, serverTime, err := fetch(ctx, since)
	if err != nil {
		return rep, err
	}
	rep.Fetched = len(changes)

	var errs []error
	for _, ch := range changes {
		removed, err := a.apply(ctx, kind, ch)
		if err != nil {
			log.Error(ctx, "apply remote change", "client_id", ch.clientID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.clientID, err))
			continue
		}
		if removed {
			rep.Removed++
		} else {
			rep.Applied++
		}
	}
	if len(errs) > 0 {
		return rep, errors.Join(errs...)
	}

	if serverTime.Before(since) {
		log.Warn(ctx, "server time behind watermark, keeping watermark",
			"server_time", serverTime, "watermark", since)
		return rep, nil
	}
	if err := a.meta.SetTime(ctx, key, serverTime); err != nil {
		return rep, fmt.Errorf("store watermark: %w", err)
	}
	rep.Watermark = serverTime.UTC()
	log.Info(ctx, "delta applied", "fetched", rep.Fetched, "applied", rep.Applied,
		"removed", rep.Removed, "watermark", rep.Watermark)
	return rep, nil
}

func (a *DeltaAgent) fetchItems(ctx context.Context, since time.Time) ([]remoteChange, time.Time, error) {
	d, err := a.api.ItemsSince(ctx, since)
	if err != nil {
		return nil, time.Time{}, err
	}
	changes := make([]remoteChange, 0, len(d.Items))
	for _, ri := range d.Items {
		item := ri.Item
		changes = append(changes, remoteChange{
			clientID:  ri.ClientID,
			tombstone: ri.Tombstone(),
			record:    item.Record,
			updatedAt: ri.UpdatedAt,
		})
	}
	return changes, d.ServerTime, nil
}

func (a *DeltaAgent) fetchNotes(ctx context.Context, since time.Time) ([]remoteChange, time.Time, error) {
	d, err := a.api.NotesSince(ctx, since)
	if err != nil {
		return nil, time.Time{}, err
	}
	changes := make([]remoteChange, 0, len(d.Notes))
	for _, rn := range d.Notes {
		note := rn.Note()
		changes = append(changes, remoteChange{
			clientID:  rn.ClientID,
			tombstone: rn.Tombstone(),
			record:    note.Record,
			updatedAt: rn.UpdatedAt,
		})
	}
	return changes, d.ServerTime, nil
}

// apply merges one change. It reports whether the local row was removed.
func (a *DeltaAgent) apply(ctx context.Context, kind models.Kind, ch remoteChange) (bool, error) {
	if ch.clientID == "" {
		return false, fmt.Errorf("%w: remote %s without clientId", common.ErrorValidation, kind)
	}

	if ch.tombstone {
		op, err := a.store.Update(ctx, ch.clientID, func(cur *models.Record) (records.Decision, error) {
			if cur == nil {
				return records.Keep(), nil
			}
			if syncstate.OnInboundTombstone(cur.State).Remove {
				return records.Drop(), nil
			}
			return records.Keep(), nil
		})
		return op == records.OpDrop, err
	}

	incoming, err := ch.record()
	if err != nil {
		return false, err
	}

	_, err = a.store.Update(ctx, ch.clientID, func(cur *models.Record) (records.Decision, error) {
		if cur == nil {
			rec := incoming
			rec.State = syncstate.Synced
			rec.KnownToServer = true
			rec.LocalUpdatedAt = a.now().UTC()
			if !ch.updatedAt.IsZero() {
				rec.AcceptServerTime(ch.updatedAt)
			}
			return records.Put(&rec), nil
		}
		if cur.Kind != incoming.Kind {
			return records.Decision{}, fmt.Errorf("remote %s collides with local %s", incoming.Kind, cur.Kind)
		}
		if cur.ServerUpdatedAt != nil && ch.updatedAt.Before(*cur.ServerUpdatedAt) {
			return records.Keep(), nil
		}

		cur.Payload = incoming.Payload
		cur.SortKey = incoming.SortKey
		cur.ParentID = incoming.ParentID
		cur.State = syncstate.OnInboundUpdate(cur.State)
		cur.KnownToServer = true
		if !cur.State.IsPending() {
			cur.LastSyncError = ""
		}
		if !ch.updatedAt.IsZero() {
			cur.AcceptServerTime(ch.updatedAt)
		}
		return records.Put(cur), nil
	})
	return false, err
}
