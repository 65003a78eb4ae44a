package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/client"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/session"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

// PushReport summarizes one push.
type PushReport struct {
	// Skipped is set when there was no session to push with.
	Skipped      bool
	Attempted    int
	Succeeded    int
	Failed       int
	Unauthorized bool
}

type pushGroup struct {
	kind   models.Kind
	intent syncstate.Intent
}

// Parents are created before their notes and deleted after them.
var pushOrder = []pushGroup{
	{models.KindItem, syncstate.IntentCreate},
	{models.KindNote, syncstate.IntentCreate},
	{models.KindNote, syncstate.IntentDelete},
	{models.KindItem, syncstate.IntentDelete},
}

var pushable = []syncstate.Kind{syncstate.KindPendingCreate, syncstate.KindPendingDelete, syncstate.KindFailed}

// PushAgent sends locally pending records to the server.
type PushAgent struct {
	store   records.Repository
	api     client.Client
	session session.Provider
	log     logging.Logger
	now     func() time.Time
}

func NewPushAgent(store records.Repository, api client.Client, sess session.Provider, log logging.Logger) *PushAgent {
	return &PushAgent{
		store:   store,
		api:     api,
		session: sess,
		log:     log.With("component", "push"),
		now:     time.Now,
	}
}

// Push attempts every pending record once. Failures are recorded on the
// records themselves and never returned.
func (a *PushAgent) Push(ctx context.Context) PushReport {
	var report PushReport

	sess, err := a.session.Current(ctx)
	if err != nil {
		a.log.Error(ctx, "read session", "error", err)
		report.Skipped = true
		return report
	}
	if !sess.CanSync(a.now()) {
		report.Skipped = true
		return report
	}

	pending := make(map[models.Kind][]models.Record, 2)
	for _, kind := range []models.Kind{models.KindItem, models.KindNote} {
		recs, err := a.store.GetBySyncStatus(ctx, kind, pushable...)
		if err != nil {
			a.log.Error(ctx, "load pending records", "kind", kind, "error", err)
			continue
		}
		pending[kind] = recs
	}

	for _, g := range pushOrder {
		for _, rec := range pending[g.kind] {
			if rec.State.Intent() != g.intent {
				continue
			}
			if ctx.Err() != nil {
				return report
			}
			a.pushOne(ctx, rec, &report)
		}
	}

	a.log.Info(ctx, "push finished",
		"attempted", report.Attempted, "succeeded", report.Succeeded, "failed", report.Failed)
	return report
}

func (a *PushAgent) pushOne(ctx context.Context, rec models.Record, report *PushReport) {
	report.Attempted++
	intent := rec.State.Intent()
	log := a.log.With("client_id", rec.ClientID, "kind", rec.Kind, "op", intent.String())

	ack, err := a.send(ctx, rec)
	if err != nil && intent == syncstate.IntentDelete && errors.Is(err, client.ErrNotFound) {
		// already gone on the server
		err = nil
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		report.Failed++
		if errors.Is(err, client.ErrUnauthorized) && !report.Unauthorized {
			report.Unauthorized = true
			if rerr := a.session.ReportUnauthorized(ctx); rerr != nil {
				log.Error(ctx, "report unauthorized session", "error", rerr)
			}
		}
		log.Warn(ctx, "push failed", "error", err)
		if serr := a.markFailed(ctx, rec.ClientID, intent, client.Diagnostic(err)); serr != nil {
			log.Error(ctx, "record push failure", "error", serr)
		}
		return
	}

	report.Succeeded++
	log.Debug(ctx, "pushed")
	if serr := a.markSucceeded(ctx, rec, ack); serr != nil {
		log.Error(ctx, "record push success", "error", serr)
	}
}

func (a *PushAgent) send(ctx context.Context, rec models.Record) (client.PushAck, error) {
	switch {
	case rec.Kind == models.KindItem && rec.State.Intent() == syncstate.IntentCreate:
		item, err := models.ItemFromRecord(rec)
		if err != nil {
			return client.PushAck{}, err
		}
		return a.api.CreateItem(ctx, item)
	case rec.Kind == models.KindNote && rec.State.Intent() == syncstate.IntentCreate:
		note, err := models.NoteFromRecord(rec)
		if err != nil {
			return client.PushAck{}, err
		}
		return a.api.CreateNote(ctx, note)
	case rec.Kind == models.KindItem:
		return client.PushAck{}, a.api.DeleteItem(ctx, rec.ClientID)
	case rec.Kind == models.KindNote:
		return client.PushAck{}, a.api.DeleteNote(ctx, rec.ClientID)
	}
	return client.PushAck{}, fmt.Errorf("unknown record kind %q", rec.Kind)
}

func (a *PushAgent) markFailed(ctx context.Context, id string, intent syncstate.Intent, diag string) error {
	_, err := a.store.Update(ctx, id, func(cur *models.Record) (records.Decision, error) {
		// a local delete may have settled the record meanwhile
		if cur == nil || cur.State.Intent() != intent {
			return records.Keep(), nil
		}
		next, err := syncstate.OnPushFailure(cur.State)
		if err != nil {
			return records.Decision{}, err
		}
		cur.State = next
		cur.LastSyncError = diag
		return records.Put(cur), nil
	})
	return err
}

func (a *PushAgent) markSucceeded(ctx context.Context, pushed models.Record, ack client.PushAck) error {
	intent := pushed.State.Intent()
	_, err := a.store.Update(ctx, pushed.ClientID, func(cur *models.Record) (records.Decision, error) {
		if intent == syncstate.IntentCreate && cur == nil {
			// Deleted locally while the create was in flight. The server
			// now has a copy, so queue its removal.
			rec := pushed
			rec.KnownToServer = true
			rec.Tombstone(a.now())
			acceptAck(&rec, ack)
			return records.Put(&rec), nil
		}
		if cur == nil {
			return records.Keep(), nil
		}
		if cur.State.Intent() != intent {
			cur.KnownToServer = true
			acceptAck(cur, ack)
			return records.Put(cur), nil
		}

		out, err := syncstate.OnPushSuccess(cur.State)
		if err != nil {
			return records.Decision{}, err
		}
		if out.Remove {
			return records.Drop(), nil
		}
		cur.State = out.Next
		cur.KnownToServer = true
		cur.LastSyncError = ""
		acceptAck(cur, ack)
		return records.Put(cur), nil
	})
	return err
}

func acceptAck(rec *models.Record, ack client.PushAck) {
	if ack.UpdatedAt != nil {
		rec.AcceptServerTime(*ack.UpdatedAt)
	}
}
