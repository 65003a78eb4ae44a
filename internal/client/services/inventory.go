package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/store"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
	"github.com/dmitrijs2005/fridgekeeper/internal/common"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// SyncRequester asks for a background sync pass.
type SyncRequester interface {
	RequestSyncPass()
}

// Inventory is the UI-facing API over the local store. Writes succeed
// offline and request a sync pass afterwards.
type Inventory struct {
	store   *store.Observable
	trigger SyncRequester
	log     logging.Logger
	now     func() time.Time
	newID   func() string
}

func NewInventory(st *store.Observable, trigger SyncRequester, log logging.Logger) *Inventory {
	return &Inventory{
		store:   st,
		trigger: trigger,
		log:     log.With("component", "inventory"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// AddItem stores a new item as pending creation.
func (s *Inventory) AddItem(ctx context.Context, p models.Product, expiryDate string, mode models.AddMode) (models.Item, error) {
	item := models.NewItem(s.newID(), p, expiryDate, mode)
	if err := item.Validate(); err != nil {
		return models.Item{}, err
	}
	rec, err := item.Record()
	if err != nil {
		return models.Item{}, err
	}
	if err := s.create(ctx, &rec); err != nil {
		return models.Item{}, fmt.Errorf("saving item: %w", err)
	}
	return item, nil
}

// AddNote attaches a new note to a live item.
func (s *Inventory) AddNote(ctx context.Context, itemID, body string, pinned bool) (models.Note, error) {
	parent, err := s.store.Get(ctx, itemID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return models.Note{}, common.ErrorParentNotFound
	case err != nil:
		return models.Note{}, err
	case parent.Kind != models.KindItem || parent.IsDeleted():
		return models.Note{}, common.ErrorParentNotFound
	}

	note := models.Note{
		ClientID:     s.newID(),
		ItemClientID: itemID,
		Body:         body,
		Pinned:       pinned,
		CreatedAt:    s.now().UTC(),
	}
	if err := note.Validate(); err != nil {
		return models.Note{}, err
	}
	rec, err := note.Record()
	if err != nil {
		return models.Note{}, err
	}
	if err := s.create(ctx, &rec); err != nil {
		return models.Note{}, fmt.Errorf("saving note: %w", err)
	}
	return note, nil
}

func (s *Inventory) create(ctx context.Context, rec *models.Record) error {
	rec.State = syncstate.OnLocalCreate()
	rec.LocalUpdatedAt = s.now().UTC()
	if err := s.store.Upsert(ctx, rec); err != nil {
		return err
	}
	s.log.Debug(ctx, "record created", "client_id", rec.ClientID, "kind", rec.Kind)
	s.trigger.RequestSyncPass()
	return nil
}

// Delete removes an item or a note. Deleting an item deletes its notes.
// Records the server never saw disappear immediately; the others are
// tombstoned until the server confirms.
func (s *Inventory) Delete(ctx context.Context, clientID string) error {
	rec, err := s.store.Get(ctx, clientID)
	if err != nil {
		return err
	}

	queued := false
	if rec.Kind == models.KindItem {
		notes, err := s.store.Query(ctx, records.Query{Kind: models.KindNote, ParentID: clientID})
		if err != nil {
			return fmt.Errorf("loading notes of %s: %w", clientID, err)
		}
		for _, n := range notes {
			q, err := s.deleteOne(ctx, n.ClientID)
			if err != nil {
				return err
			}
			queued = queued || q
		}
	}

	q, err := s.deleteOne(ctx, clientID)
	if err != nil {
		return err
	}
	if queued || q {
		s.trigger.RequestSyncPass()
	}
	return nil
}

// deleteOne reports whether a remote delete was queued.
func (s *Inventory) deleteOne(ctx context.Context, clientID string) (bool, error) {
	var queued bool
	_, err := s.store.Update(ctx, clientID, func(cur *models.Record) (records.Decision, error) {
		if cur == nil {
			return records.Decision{}, common.ErrorNotFound
		}
		out, err := syncstate.OnLocalDelete(cur.State, cur.KnownToServer)
		if err != nil {
			return records.Decision{}, err
		}
		if out.Remove {
			return records.Drop(), nil
		}
		if cur.IsDeleted() {
			return records.Keep(), nil
		}
		cur.Tombstone(s.now())
		queued = true
		return records.Put(cur), nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", clientID, err)
	}
	return queued, nil
}

// List returns the live items ordered by expiry date.
func (s *Inventory) List(ctx context.Context) ([]models.ItemView, error) {
	recs, err := s.store.Query(ctx, records.Query{Kind: models.KindItem})
	if err != nil {
		return nil, err
	}
	return s.itemViews(ctx, recs), nil
}

// Notes returns the live notes of an item, pinned first.
func (s *Inventory) Notes(ctx context.Context, itemID string) ([]models.NoteView, error) {
	recs, err := s.store.Query(ctx, records.Query{Kind: models.KindNote, ParentID: itemID})
	if err != nil {
		return nil, err
	}
	return s.noteViews(ctx, recs), nil
}

// ObserveItems streams the item list; see store.Observable.Observe.
func (s *Inventory) ObserveItems(ctx context.Context) <-chan []models.ItemView {
	return mapStream(ctx, s.store.Observe(ctx, records.Query{Kind: models.KindItem}), s.itemViews)
}

func (s *Inventory) ObserveNotes(ctx context.Context, itemID string) <-chan []models.NoteView {
	return mapStream(ctx, s.store.Observe(ctx, records.Query{Kind: models.KindNote, ParentID: itemID}), s.noteViews)
}

// Status returns record counts per sync status.
func (s *Inventory) Status(ctx context.Context) (records.Counts, error) {
	return s.store.Counts(ctx)
}

func (s *Inventory) itemViews(ctx context.Context, recs []models.Record) []models.ItemView {
	views := make([]models.ItemView, 0, len(recs))
	for _, r := range recs {
		v, err := models.ItemViewFromRecord(r)
		if err != nil {
			s.log.Error(ctx, "decode item", "client_id", r.ClientID, "error", err)
			continue
		}
		views = append(views, v)
	}
	return views
}

func (s *Inventory) noteViews(ctx context.Context, recs []models.Record) []models.NoteView {
	views := make([]models.NoteView, 0, len(recs))
	for _, r := range recs {
		v, err := models.NoteViewFromRecord(r)
		if err != nil {
			s.log.Error(ctx, "decode note", "client_id", r.ClientID, "error", err)
			continue
		}
		views = append(views, v)
	}
	return views
}

func mapStream[T any](ctx context.Context, in <-chan []models.Record, conv func(context.Context, []models.Record) []T) <-chan []T {
	out := make(chan []T)
	go func() {
		defer close(out)
		for recs := range in {
			select {
			case out <- conv(ctx, recs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
