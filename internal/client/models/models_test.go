package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
	"github.com/dmitrijs2005/fridgekeeper/internal/common"
	"github.com/stretchr/testify/require"
)

func TestItem_RecordRoundTrip(t *testing.T) {
	src := NewItem("id-1", Product{Barcode: "4006381333931", Name: "Milk", Brand: "Farm", NutriScore: "b"}, "2026-10-20", AddModeScan)
	require.NoError(t, src.Validate())

	rec, err := src.Record()
	require.NoError(t, err)
	require.Equal(t, KindItem, rec.Kind)
	require.Equal(t, "2026-10-20", rec.SortKey)

	got, err := ItemFromRecord(rec)
	require.NoError(t, err)
	require.Equal(t, src, got)
}

func TestItem_NoExpirySortsLast(t *testing.T) {
	rec, err := NewItem("id", Product{Name: "Salt"}, "", AddModeManual).Record()
	require.NoError(t, err)
	require.Greater(t, rec.SortKey, "2999-12-31")
}

func TestItem_Validate(t *testing.T) {
	require.ErrorIs(t, Item{AddMode: AddModeScan}.Validate(), common.ErrorValidation)
	require.ErrorIs(t, Item{ClientID: "x", ExpiryDate: "20.10.2026", AddMode: AddModeScan}.Validate(), common.ErrorIncorrectExpiry)
	require.ErrorIs(t, Item{ClientID: "x", AddMode: "BOGUS"}.Validate(), common.ErrorValidation)
}

func TestNote_RecordRoundTrip(t *testing.T) {
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	src := Note{ClientID: "n1", ItemClientID: "i1", Body: "open on Monday", Pinned: true, CreatedAt: created}
	require.NoError(t, src.Validate())

	rec, err := src.Record()
	require.NoError(t, err)
	require.Equal(t, "i1", rec.ParentID)

	got, err := NoteFromRecord(rec)
	require.NoError(t, err)
	require.Equal(t, src, got)

	_, err = ItemFromRecord(rec)
	require.Error(t, err)
}

func TestNote_PinnedSortsFirst(t *testing.T) {
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	pinned, err := Note{ClientID: "a", ItemClientID: "i", Body: "x", Pinned: true, CreatedAt: created.Add(time.Hour)}.Record()
	require.NoError(t, err)
	plain, err := Note{ClientID: "b", ItemClientID: "i", Body: "y", CreatedAt: created}.Record()
	require.NoError(t, err)
	require.Less(t, pinned.SortKey, plain.SortKey)
}

func TestNote_SortKeyOrdersSubSecond(t *testing.T) {
	base := time.Date(2026, 10, 1, 8, 0, 5, 0, time.UTC)
	offsets := []time.Duration{
		0,
		100 * time.Millisecond,
		120 * time.Millisecond,
		500 * time.Millisecond,
		500*time.Millisecond + time.Nanosecond,
		time.Second,
	}
	keys := make([]string, 0, len(offsets))
	for i, d := range offsets {
		rec, err := Note{ClientID: fmt.Sprint(i), ItemClientID: "i", Body: "x", CreatedAt: base.Add(d)}.Record()
		require.NoError(t, err)
		keys = append(keys, rec.SortKey)
	}
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i], "offset %v", offsets[i])
	}
	require.Equal(t, "12026-10-01T08:00:05.000000000Z", keys[0])
}

func TestNote_SortKeyIsUTC(t *testing.T) {
	at := time.Date(2026, 10, 1, 10, 0, 0, 0, time.FixedZone("EEST", 3*3600))
	rec, err := Note{ClientID: "a", ItemClientID: "i", Body: "x", CreatedAt: at}.Record()
	require.NoError(t, err)
	require.Equal(t, "12026-10-01T07:00:00.000000000Z", rec.SortKey)
}

func TestRecord_TouchIsMonotonic(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Record{LocalUpdatedAt: t0}
	r.Touch(t0.Add(-time.Minute))
	require.Equal(t, t0, r.LocalUpdatedAt)
	r.Touch(t0.Add(time.Minute))
	require.Equal(t, t0.Add(time.Minute), r.LocalUpdatedAt)
}

func TestRecord_AcceptServerTimeOnlyMovesForward(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var r Record
	require.True(t, r.AcceptServerTime(t0))
	require.False(t, r.AcceptServerTime(t0.Add(-time.Second)))
	require.Equal(t, t0, *r.ServerUpdatedAt)
	require.True(t, r.AcceptServerTime(t0.Add(time.Second)))
	require.Equal(t, t0.Add(time.Second), *r.ServerUpdatedAt)
}

func TestRecord_Tombstone(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Record{State: syncstate.FailedWith(syncstate.IntentCreate), LastSyncError: "boom"}
	r.Tombstone(at)
	require.True(t, r.IsDeleted())
	require.Equal(t, syncstate.PendingDelete, r.State)
	require.Empty(t, r.LastSyncError)
	require.Equal(t, at, r.LocalUpdatedAt)
}
