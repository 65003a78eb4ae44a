package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
)

// Op is the write an UpdateFunc asks for.
type Op uint8

const (
	OpKeep Op = iota
	OpPut
	OpDrop
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDrop:
		return "drop"
	default:
		return "keep"
	}
}

// Decision is returned by an UpdateFunc.
type Decision struct {
	Op     Op
	Record *models.Record
}

// Keep leaves the row untouched.
func Keep() Decision { return Decision{Op: OpKeep} }

// Put writes rec (insert or replace).
func Put(rec *models.Record) Decision { return Decision{Op: OpPut, Record: rec} }

// Drop hard-deletes the row.
func Drop() Decision { return Decision{Op: OpDrop} }

// UpdateFunc receives the current row, or nil when it does not exist. It must
// not call back into the repository.
type UpdateFunc func(cur *models.Record) (Decision, error)

// Query selects records for listing and observation.
type Query struct {
	Kind models.Kind
	// ParentID restricts the result to children of one item when set.
	ParentID string
	// IncludeDeleted returns tombstoned records too.
	IncludeDeleted bool
}

// Counts is the number of records per sync status.
type Counts struct {
	Synced        int
	PendingCreate int
	PendingDelete int
	Failed        int
}

// Pending is the number of records still waiting for a push.
func (c Counts) Pending() int { return c.PendingCreate + c.PendingDelete + c.Failed }

// Repository is the durable local record store.
type Repository interface {
	// Upsert inserts rec or fully replaces the row with the same client id.
	Upsert(ctx context.Context, rec *models.Record) error

	// Get returns a single record, common.ErrorNotFound if absent.
	Get(ctx context.Context, clientID string) (*models.Record, error)

	// Query lists records ordered by sort key. Tombstoned rows are excluded
	// unless q.IncludeDeleted is set.
	Query(ctx context.Context, q Query) ([]models.Record, error)

	// GetBySyncStatus lists records of kind in any of the given statuses,
	// oldest local change first.
	GetBySyncStatus(ctx context.Context, kind models.Kind, statuses ...syncstate.Kind) ([]models.Record, error)

	// Delete removes the row permanently. It returns common.ErrorNotFound
	// when nothing was deleted.
	Delete(ctx context.Context, clientID string) error

	// MarkDeleted sets the local tombstone and queues a remote delete.
	MarkDeleted(ctx context.Context, clientID string, at time.Time) error

	// Update runs fn against the current row and applies its decision
	// atomically.
	Update(ctx context.Context, clientID string, fn UpdateFunc) (Op, error)

	// Counts summarizes sync statuses across all records.
	Counts(ctx context.Context) (Counts, error)
}
