// Package syncstate implements the per-record synchronization lifecycle.
//
// A record is in exactly one of four states: Synced, PendingCreate,
// PendingDelete or Failed. Failed is an overlay on top of the pending intent
// (create or delete) so a retry knows which operation to replay. The state is
// a single tagged value, which makes "pending create and pending delete at
// the same time" unrepresentable.
//
// Transitions are pure functions; the caller persists the result.
package syncstate

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when an event is not permitted in the
// record's current state.
var ErrIllegalTransition = errors.New("illegal sync state transition")

// ErrInvalidState is returned by Parse for a persisted pair that is not a
// valid state.
var ErrInvalidState = errors.New("invalid persisted sync state")

// Kind is the effective status of a record.
type Kind uint8

const (
	KindSynced Kind = iota
	KindPendingCreate
	KindPendingDelete
	KindFailed
)

// Intent is the local operation awaiting confirmation by the server.
type Intent uint8

const (
	IntentNone Intent = iota
	IntentCreate
	IntentDelete
)

func (i Intent) String() string {
	switch i {
	case IntentCreate:
		return "create"
	case IntentDelete:
		return "delete"
	default:
		return ""
	}
}

// State is the tagged sync state of a record. The zero value is Synced.
type State struct {
	kind   Kind
	intent Intent
}

var (
	Synced        = State{kind: KindSynced}
	PendingCreate = State{kind: KindPendingCreate, intent: IntentCreate}
	PendingDelete = State{kind: KindPendingDelete, intent: IntentDelete}
)

// FailedWith returns the Failed overlay retaining intent.
func FailedWith(intent Intent) State {
	return State{kind: KindFailed, intent: intent}
}

func (s State) Kind() Kind { return s.kind }

// Intent returns the pending local operation, IntentNone for Synced.
func (s State) Intent() Intent { return s.intent }

// IsPending reports whether the record still needs to be pushed.
func (s State) IsPending() bool { return s.intent != IntentNone }

// Status is the persisted status column value of k.
func (k Kind) Status() string {
	switch k {
	case KindPendingCreate:
		return "PENDING_CREATE"
	case KindPendingDelete:
		return "PENDING_DELETE"
	case KindFailed:
		return "FAILED"
	default:
		return "SYNCED"
	}
}

// Status is the persisted status column value.
func (s State) Status() string { return s.kind.Status() }

func (s State) String() string {
	if s.kind == KindFailed {
		return fmt.Sprintf("FAILED(%s)", s.intent)
	}
	return s.Status()
}

// Parse decodes the persisted (status, intent) pair. Combinations that do not
// correspond to a valid state are rejected.
func Parse(status, intent string) (State, error) {
	switch status {
	case "SYNCED":
		if intent == "" {
			return Synced, nil
		}
	case "PENDING_CREATE":
		if intent == "create" {
			return PendingCreate, nil
		}
	case "PENDING_DELETE":
		if intent == "delete" {
			return PendingDelete, nil
		}
	case "FAILED":
		switch intent {
		case "create":
			return FailedWith(IntentCreate), nil
		case "delete":
			return FailedWith(IntentDelete), nil
		}
	}
	return State{}, fmt.Errorf("%w %q/%q", ErrInvalidState, status, intent)
}

// Outcome is the result of a transition: either the row is removed from the
// store or it is kept in state Next.
type Outcome struct {
	Remove bool
	Next   State
}

func keep(s State) Outcome { return Outcome{Next: s} }

var remove = Outcome{Remove: true}

// OnLocalCreate is the state of a freshly created local record.
func OnLocalCreate() State { return PendingCreate }

// OnPushSuccess applies a 2xx response to the pushed intent.
func OnPushSuccess(s State) (Outcome, error) {
	switch s.intent {
	case IntentCreate:
		return keep(Synced), nil
	case IntentDelete:
		return remove, nil
	}
	return Outcome{}, fmt.Errorf("%w: push success in %s", ErrIllegalTransition, s)
}

// OnPushFailure marks the record Failed, keeping its intent for the next pass.
func OnPushFailure(s State) (State, error) {
	if !s.IsPending() {
		return State{}, fmt.Errorf("%w: push failure in %s", ErrIllegalTransition, s)
	}
	return FailedWith(s.intent), nil
}

// OnLocalDelete decides between a hard delete and a queued remote delete.
//
// A record that was never confirmed by the server is removed locally and
// never reaches the remote API. A record still pending creation is always
// removed: PendingCreate never moves to PendingDelete. Deleting a record
// that is already queued for deletion is a no-op.
func OnLocalDelete(s State, knownToServer bool) (Outcome, error) {
	switch {
	case s.kind == KindPendingCreate:
		return remove, nil
	case s.intent == IntentDelete:
		return keep(s), nil
	case !knownToServer:
		return remove, nil
	}
	return keep(PendingDelete), nil
}

// OnInboundUpdate applies a remote update. A pending local intent wins over
// the inbound payload so the next push still fires.
func OnInboundUpdate(s State) State {
	if s.IsPending() {
		return s
	}
	return Synced
}

// OnInboundTombstone applies a remote delete. The row is removed whatever the
// local state is; when a local delete is also pending both signals converge
// on the same hard delete.
func OnInboundTombstone(State) Outcome { return remove }
