// Package models defines client-side data models used by the FridgeKeeper
// sync engine and its callers.
package models

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/syncstate"
)

// Kind classifies a record.
type Kind string

const (
	KindItem Kind = "item"
	KindNote Kind = "note"
)

// Record is a row of the local store: business payload plus sync metadata.
// It generalizes items and notes; the payload is opaque to the sync engine.
type Record struct {
	// ClientID is generated on-device at creation time and never changes.
	ClientID string
	Kind     Kind
	// ParentID is the owning item's client id for notes.
	ParentID string
	Payload  json.RawMessage
	// SortKey orders records in observation queries.
	SortKey string

	State syncstate.State

	// LocalUpdatedAt is the wall clock of the last local mutation.
	LocalUpdatedAt time.Time
	// ServerUpdatedAt is only ever taken from server payloads.
	ServerUpdatedAt *time.Time
	// DeletedAt is the local tombstone.
	DeletedAt *time.Time

	LastSyncError string
	// KnownToServer is set once the server has confirmed or sent the record.
	KnownToServer bool
}

// IsDeleted reports whether the record carries a local tombstone.
func (r Record) IsDeleted() bool { return r.DeletedAt != nil }

// Touch advances LocalUpdatedAt to at. A clock that went backwards does not
// move the timestamp back.
func (r *Record) Touch(at time.Time) {
	if at.After(r.LocalUpdatedAt) {
		r.LocalUpdatedAt = at
	}
}

// AcceptServerTime records t as the server timestamp unless it is older than
// the one already stored. It reports whether t was accepted.
func (r *Record) AcceptServerTime(t time.Time) bool {
	if r.ServerUpdatedAt != nil && t.Before(*r.ServerUpdatedAt) {
		return false
	}
	t = t.UTC()
	r.ServerUpdatedAt = &t
	return true
}

// Tombstone marks the record deleted locally and queues a remote delete.
func (r *Record) Tombstone(at time.Time) {
	at = at.UTC()
	r.DeletedAt = &at
	r.State = syncstate.PendingDelete
	r.LastSyncError = ""
	r.Touch(at)
}

// SyncInfo is the sync status shown next to a record in listings.
type SyncInfo struct {
	Status        string `json:"status"`
	LastSyncError string `json:"lastSyncError,omitempty"`
}

func syncInfo(r Record) SyncInfo {
	return SyncInfo{Status: r.State.String(), LastSyncError: r.LastSyncError}
}
