// Package records provides the local persistence layer of the sync engine.
//
// # Overview
//
// Items and notes are stored as generic records (see internal/client/models)
// in a single SQLite table: an opaque JSON payload plus sync metadata
// (status, pending intent, local and server timestamps, tombstone).
// SQLiteRepository implements Repository on top of *sql.DB.
//
// # Atomicity
//
// Update performs a read-modify-write of a single record under a per-record
// lock and inside one transaction, so two writers of the same client id never
// lose each other's changes. The push and delta agents use it for every
// state change. Transactions that hit SQLITE_BUSY are retried (see dbx).
//
// # Timestamps
//
// Timestamps are stored as unix milliseconds. On upsert local_updated_at and
// server_updated_at never move backwards.
//
// Typical usage
//
//	repo := records.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, &rec)
//	items, _ := repo.Query(ctx, records.Query{Kind: models.KindItem})
//	_, _ = repo.Update(ctx, id, func(cur *models.Record) (records.Decision, error) {
//	    if cur == nil {
//	        return records.Keep(), nil
//	    }
//	    cur.State = syncstate.Synced
//	    return records.Put(cur), nil
//	})
package records
