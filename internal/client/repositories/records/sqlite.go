package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
	"github.com/dmitrijs2005/fridgekeeper/internal/common"
	"github.com/dmitrijs2005/fridgekeeper/internal/dbx"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

const columns = `client_id, kind, parent_id, payload, sort_key, sync_status, pending_intent,
	local_updated_at, server_updated_at, deleted_at, last_sync_error, known_to_server`

const upsertQuery = `INSERT INTO records (` + columns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(client_id) DO UPDATE SET
		kind = excluded.kind,
		parent_id = excluded.parent_id,
		payload = excluded.payload,
		sort_key = excluded.sort_key,
		sync_status = excluded.sync_status,
		pending_intent = excluded.pending_intent,
		local_updated_at = max(records.local_updated_at, excluded.local_updated_at),
		server_updated_at = CASE
			WHEN excluded.server_updated_at IS NULL THEN records.server_updated_at
			WHEN records.server_updated_at IS NULL THEN excluded.server_updated_at
			ELSE max(records.server_updated_at, excluded.server_updated_at)
		END,
		deleted_at = excluded.deleted_at,
		last_sync_error = excluded.last_sync_error,
		known_to_server = max(records.known_to_server, excluded.known_to_server)`

// SQLiteRepository implements Repository over a SQLite *sql.DB.
type SQLiteRepository struct {
	db    *sql.DB
	locks *rowLocks
	log   logging.Logger
}

type Option func(*SQLiteRepository)

// WithLogger sets where skipped corrupt rows are reported.
func WithLogger(log logging.Logger) Option {
	return func(r *SQLiteRepository) { r.log = log.With("component", "records") }
}

// NewSQLiteRepository returns a repository bound to db. The schema must have
// been migrated (see migrations.Up).
func NewSQLiteRepository(db *sql.DB, opts ...Option) *SQLiteRepository {
	r := &SQLiteRepository{db: db, locks: newRowLocks(), log: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert inserts or replaces rec. Timestamps never move backwards.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.Record) error {
	defer r.locks.lock(rec.ClientID)()
	err := dbx.RetryBusy(ctx, func() error {
		return upsert(ctx, r.db, rec)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// Get returns the record with clientID, including tombstoned ones.
func (r *SQLiteRepository) Get(ctx context.Context, clientID string) (*models.Record, error) {
	rec, err := get(ctx, r.db, clientID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

func (r *SQLiteRepository) Query(ctx context.Context, q Query) ([]models.Record, error) {
	var (
		where = []string{"kind = ?"}
		args  = []any{string(q.Kind)}
	)
	if q.ParentID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, q.ParentID)
	}
	if !q.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	query := `SELECT ` + columns + ` FROM records WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY sort_key, client_id`

	res, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return res, nil
}

func (r *SQLiteRepository) GetBySyncStatus(ctx context.Context, kind models.Kind, statuses ...syncstate.Kind) ([]models.Record, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []any{string(kind)}
	marks := make([]string, 0, len(statuses))
	for _, s := range statuses {
		marks = append(marks, "?")
		args = append(args, s.Status())
	}
	query := `SELECT ` + columns + ` FROM records WHERE kind = ? AND sync_status IN (` +
		strings.Join(marks, ", ") + `) ORDER BY local_updated_at, client_id`

	res, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records by status: %w", err)
	}
	return res, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, clientID string) error {
	defer r.locks.lock(clientID)()
	var affected int64
	err := dbx.RetryBusy(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE client_id = ?`, clientID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, clientID string, at time.Time) error {
	_, err := r.Update(ctx, clientID, func(cur *models.Record) (Decision, error) {
		if cur == nil {
			return Decision{}, common.ErrorNotFound
		}
		cur.Tombstone(at)
		return Put(cur), nil
	})
	return err
}

// Update locks clientID, reads the row inside a transaction, and applies the
// decision of fn. An error from fn rolls back and is returned unwrapped.
func (r *SQLiteRepository) Update(ctx context.Context, clientID string, fn UpdateFunc) (Op, error) {
	defer r.locks.lock(clientID)()

	var applied Op
	var fnErr error
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := get(ctx, tx, clientID)
		if err != nil {
			return err
		}
		d, err := fn(cur)
		if err != nil {
			fnErr = err
			return err
		}
		switch d.Op {
		case OpPut:
			if d.Record == nil || d.Record.ClientID != clientID {
				fnErr = fmt.Errorf("update of %s returned a foreign record", clientID)
				return fnErr
			}
			if err := upsert(ctx, tx, d.Record); err != nil {
				return err
			}
		case OpDrop:
			if cur != nil {
				if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE client_id = ?`, clientID); err != nil {
					return err
				}
			}
		}
		applied = d.Op
		return nil
	})
	if fnErr != nil {
		return OpKeep, fnErr
	}
	if err != nil {
		return OpKeep, fmt.Errorf("failed to update record %s: %w", clientID, err)
	}
	return applied, nil
}

func (r *SQLiteRepository) Counts(ctx context.Context) (Counts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM records GROUP BY sync_status`)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("failed to scan counts: %w", err)
		}
		switch status {
		case syncstate.KindSynced.Status():
			c.Synced = n
		case syncstate.KindPendingCreate.Status():
			c.PendingCreate = n
		case syncstate.KindPendingDelete.Status():
			c.PendingDelete = n
		case syncstate.KindFailed.Status():
			c.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("failed to iterate counts: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if errors.Is(err, syncstate.ErrInvalidState) {
			// the row stays as it is; listing and pushing go on without it
			r.log.Error(ctx, "skipping record with corrupt sync state", "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func upsert(ctx context.Context, db dbx.DBTX, rec *models.Record) error {
	payload := []byte(rec.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := db.ExecContext(ctx, upsertQuery,
		rec.ClientID,
		string(rec.Kind),
		rec.ParentID,
		payload,
		rec.SortKey,
		rec.State.Status(),
		rec.State.Intent().String(),
		rec.LocalUpdatedAt.UnixMilli(),
		toMillis(rec.ServerUpdatedAt),
		toMillis(rec.DeletedAt),
		rec.LastSyncError,
		rec.KnownToServer,
	)
	return err
}

func get(ctx context.Context, db dbx.DBTX, clientID string) (*models.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+columns+` FROM records WHERE client_id = ?`, clientID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var (
		rec             models.Record
		kind            string
		payload         []byte
		status, intent  string
		local           int64
		server, deleted sql.NullInt64
	)
	err := s.Scan(&rec.ClientID, &kind, &rec.ParentID, &payload, &rec.SortKey, &status, &intent,
		&local, &server, &deleted, &rec.LastSyncError, &rec.KnownToServer)
	if err != nil {
		return nil, err
	}
	state, err := syncstate.Parse(status, intent)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ClientID, err)
	}
	rec.Kind = models.Kind(kind)
	rec.Payload = json.RawMessage(payload)
	rec.State = state
	rec.LocalUpdatedAt = time.UnixMilli(local).UTC()
	rec.ServerUpdatedAt = fromMillis(server)
	rec.DeletedAt = fromMillis(deleted)
	return &rec, nil
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
