package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/migrations"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
	"github.com/dmitrijs2005/fridgekeeper/internal/common"

	_ "modernc.org/sqlite"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func item(id, expiry string, state syncstate.State, at time.Time) *models.Record {
	rec, err := models.NewItem(id, models.Product{Name: "milk " + id}, expiry, models.AddModeManual).Record()
	if err != nil {
		panic(err)
	}
	rec.State = state
	rec.LocalUpdatedAt = at
	return &rec
}

func TestUpsert_InsertThenReplace(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	rec := item("a", "2025-03-10", syncstate.PendingCreate, t0)
	require.NoError(t, r.Upsert(ctx, rec))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.KindItem, got.Kind)
	assert.Equal(t, syncstate.PendingCreate, got.State)
	assert.Equal(t, t0, got.LocalUpdatedAt)
	assert.Nil(t, got.ServerUpdatedAt)
	assert.JSONEq(t, string(rec.Payload), string(got.Payload))

	srv := t0.Add(time.Minute)
	got.State = syncstate.Synced
	got.ServerUpdatedAt = &srv
	got.KnownToServer = true
	got.LocalUpdatedAt = t0.Add(time.Second)
	require.NoError(t, r.Upsert(ctx, got))

	again, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, syncstate.Synced, again.State)
	require.NotNil(t, again.ServerUpdatedAt)
	assert.Equal(t, srv, *again.ServerUpdatedAt)
	assert.True(t, again.KnownToServer)
}

func TestUpsert_TimestampsNeverMoveBack(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	srv := t0.Add(time.Hour)
	rec := item("a", "", syncstate.Synced, t0.Add(time.Minute))
	rec.ServerUpdatedAt = &srv
	rec.KnownToServer = true
	require.NoError(t, r.Upsert(ctx, rec))

	older := t0
	stale := item("a", "", syncstate.Synced, t0)
	stale.ServerUpdatedAt = &older
	require.NoError(t, r.Upsert(ctx, stale))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), got.LocalUpdatedAt)
	assert.Equal(t, srv, *got.ServerUpdatedAt)
	assert.True(t, got.KnownToServer)
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	_, err := r.Get(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestQuery_OrdersBySortKeyAndHidesTombstones(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, item("late", "2025-04-01", syncstate.Synced, t0)))
	require.NoError(t, r.Upsert(ctx, item("none", "", syncstate.Synced, t0)))
	require.NoError(t, r.Upsert(ctx, item("soon", "2025-03-02", syncstate.PendingCreate, t0)))
	gone := item("gone", "2025-03-01", syncstate.Synced, t0)
	gone.Tombstone(t0)
	require.NoError(t, r.Upsert(ctx, gone))

	got, err := r.Query(ctx, Query{Kind: models.KindItem})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, rec := range got {
		ids = append(ids, rec.ClientID)
	}
	assert.Equal(t, []string{"soon", "late", "none"}, ids)

	all, err := r.Query(ctx, Query{Kind: models.KindItem, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestQuery_ByParent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for i, parent := range []string{"p1", "p1", "p2"} {
		n := models.Note{ClientID: fmt.Sprintf("n%d", i), ItemClientID: parent, Body: "x", CreatedAt: t0.Add(time.Duration(i) * time.Second)}
		rec, err := n.Record()
		require.NoError(t, err)
		rec.State = syncstate.PendingCreate
		rec.LocalUpdatedAt = t0
		require.NoError(t, r.Upsert(ctx, &rec))
	}

	got, err := r.Query(ctx, Query{Kind: models.KindNote, ParentID: "p1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n0", got[0].ClientID)
	assert.Equal(t, "n1", got[1].ClientID)
}

func TestGetBySyncStatus(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, item("b", "", syncstate.PendingCreate, t0.Add(time.Second))))
	require.NoError(t, r.Upsert(ctx, item("a", "", syncstate.FailedWith(syncstate.IntentCreate), t0)))
	require.NoError(t, r.Upsert(ctx, item("c", "", syncstate.Synced, t0)))
	require.NoError(t, r.Upsert(ctx, item("d", "", syncstate.FailedWith(syncstate.IntentDelete), t0)))

	got, err := r.GetBySyncStatus(ctx, models.KindItem, syncstate.KindPendingCreate, syncstate.KindFailed)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ClientID)
	assert.Equal(t, "d", got[1].ClientID)
	assert.Equal(t, "b", got[2].ClientID)

	none, err := r.GetBySyncStatus(ctx, models.KindNote, syncstate.KindPendingCreate)
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := r.GetBySyncStatus(ctx, models.KindItem)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, item("a", "", syncstate.Synced, t0)))
	require.NoError(t, r.Delete(ctx, "a"))

	_, err := r.Get(ctx, "a")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.ErrorIs(t, r.Delete(ctx, "a"), common.ErrorNotFound)
}

func TestMarkDeleted(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, item("a", "", syncstate.Synced, t0)))
	at := t0.Add(time.Minute)
	require.NoError(t, r.MarkDeleted(ctx, "a", at))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())
	assert.Equal(t, at, *got.DeletedAt)
	assert.Equal(t, syncstate.PendingDelete, got.State)
	assert.Equal(t, at, got.LocalUpdatedAt)

	require.ErrorIs(t, r.MarkDeleted(ctx, "missing", at), common.ErrorNotFound)
}

func TestUpdate_Decisions(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	op, err := r.Update(ctx, "a", func(cur *models.Record) (Decision, error) {
		require.Nil(t, cur)
		return Put(item("a", "", syncstate.PendingCreate, t0)), nil
	})
	require.NoError(t, err)
	assert.Equal(t, OpPut, op)

	op, err = r.Update(ctx, "a", func(cur *models.Record) (Decision, error) {
		require.NotNil(t, cur)
		return Keep(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, OpKeep, op)

	op, err = r.Update(ctx, "a", func(cur *models.Record) (Decision, error) {
		return Drop(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, OpDrop, op)

	_, err = r.Get(ctx, "a")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_FuncErrorRollsBack(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, item("a", "", syncstate.PendingCreate, t0)))

	boom := errors.New("boom")
	_, err := r.Update(ctx, "a", func(cur *models.Record) (Decision, error) {
		return Decision{}, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, syncstate.PendingCreate, got.State)
}

func TestUpdate_RejectsForeignRecord(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	_, err := r.Update(context.Background(), "a", func(cur *models.Record) (Decision, error) {
		return Put(item("b", "", syncstate.Synced, t0)), nil
	})
	require.Error(t, err)
}

func TestUpdate_ConcurrentWritersDoNotLoseChanges(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, item("a", "", syncstate.Synced, t0)))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Update(ctx, "a", func(cur *models.Record) (Decision, error) {
				cur.LastSyncError += "x"
				return Put(cur), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got.LastSyncError, writers)
	assert.Zero(t, r.locks.size())
}

func TestCounts(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, item("a", "", syncstate.Synced, t0)))
	require.NoError(t, r.Upsert(ctx, item("b", "", syncstate.PendingCreate, t0)))
	require.NoError(t, r.Upsert(ctx, item("c", "", syncstate.PendingCreate, t0)))
	require.NoError(t, r.Upsert(ctx, item("d", "", syncstate.FailedWith(syncstate.IntentDelete), t0)))
	del := item("e", "", syncstate.Synced, t0)
	del.Tombstone(t0)
	require.NoError(t, r.Upsert(ctx, del))

	c, err := r.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Synced: 1, PendingCreate: 2, PendingDelete: 1, Failed: 1}, c)
	assert.Equal(t, 4, c.Pending())
}

func TestScan_RejectsCorruptState(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	_, err := db.Exec(`INSERT INTO records (client_id, kind, payload, sync_status, pending_intent, local_updated_at)
		VALUES ('x', 'item', '{}', 'SYNCED', 'delete', 0)`)
	require.NoError(t, err)

	_, err = r.Get(context.Background(), "x")
	require.ErrorIs(t, err, syncstate.ErrInvalidState)
	assert.Contains(t, err.Error(), "invalid persisted sync state")
}

func TestList_SkipsCorruptRows(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, item("a", "", syncstate.PendingCreate, t0)))
	_, err := db.Exec(`INSERT INTO records (client_id, kind, payload, sync_status, pending_intent, local_updated_at)
		VALUES ('x', 'item', '{}', 'PENDING_CREATE', 'delete', 0)`)
	require.NoError(t, err)

	got, err := r.Query(ctx, Query{Kind: models.KindItem})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ClientID)

	pending, err := r.GetBySyncStatus(ctx, models.KindItem, syncstate.KindPendingCreate)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].ClientID)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records WHERE client_id = 'x'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestErrorsAreWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	boom := errors.New("disk I/O")

	mock.ExpectExec("INSERT INTO records").WillReturnError(boom)
	err = r.Upsert(ctx, item("a", "", syncstate.PendingCreate, t0))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to upsert record")

	mock.ExpectQuery("SELECT .* FROM records WHERE kind").WillReturnError(boom)
	_, err = r.Query(ctx, Query{Kind: models.KindItem})
	require.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT sync_status, COUNT").WillReturnError(boom)
	_, err = r.Counts(ctx)
	require.ErrorIs(t, err, boom)

	mock.ExpectBegin().WillReturnError(boom)
	_, err = r.Update(ctx, "a", func(*models.Record) (Decision, error) { return Keep(), nil })
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to update record a")

	require.NoError(t, mock.ExpectationsWereMet())
}
