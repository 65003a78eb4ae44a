package client

import (
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
)

// PushAck is the optional body of a successful create.
type PushAck struct {
	ClientID  string     `json:"clientId,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type noteRequest struct {
	ClientID  string    `json:"clientId"`
	Body      string    `json:"body"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
}

// RemoteItem is an item as returned by GET /sync/items.
type RemoteItem struct {
	models.Item
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	IsDeleted bool       `json:"isDeleted,omitempty"`
}

// Tombstone reports whether the server deleted the item.
func (r RemoteItem) Tombstone() bool { return r.IsDeleted || r.DeletedAt != nil }

// RemoteNote is a note as returned by GET /sync/notes.
type RemoteNote struct {
	ClientID     string     `json:"clientId"`
	ItemClientID string     `json:"itemClientId"`
	Body         string     `json:"body"`
	Pinned       bool       `json:"pinned"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	IsDeleted    bool       `json:"isDeleted,omitempty"`
}

func (r RemoteNote) Tombstone() bool { return r.IsDeleted || r.DeletedAt != nil }

// Note returns the business fields of r.
func (r RemoteNote) Note() models.Note {
	return models.Note{
		ClientID:     r.ClientID,
		ItemClientID: r.ItemClientID,
		Body:         r.Body,
		Pinned:       r.Pinned,
		CreatedAt:    r.CreatedAt,
	}
}

// ItemDelta is the response of GET /sync/items. ServerTime is the server's
// "as of" clock for the response and becomes the next watermark.
type ItemDelta struct {
	Since      time.Time    `json:"since"`
	ServerTime time.Time    `json:"serverTime"`
	Items      []RemoteItem `json:"items"`
}

// NoteDelta is the response of GET /sync/notes.
type NoteDelta struct {
	Since      time.Time    `json:"since"`
	ServerTime time.Time    `json:"serverTime"`
	Notes      []RemoteNote `json:"notes"`
}
