package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/common"
)

// sortTimeLayout is fixed width so sort keys compare lexically in time order.
const sortTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Note is a free-form note attached to an item.
type Note struct {
	ClientID     string    `json:"clientId"`
	ItemClientID string    `json:"itemClientId"`
	Body         string    `json:"body"`
	Pinned       bool      `json:"pinned"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (n Note) Validate() error {
	if n.ClientID == "" || n.ItemClientID == "" {
		return fmt.Errorf("%w: note needs client id and item client id", common.ErrorValidation)
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("%w: empty note body", common.ErrorValidation)
	}
	return nil
}

// Record wraps the note into a store record. Pinned notes sort first, then
// by creation time.
func (n Note) Record() (Record, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return Record{}, fmt.Errorf("encode note: %w", err)
	}
	prefix := "1"
	if n.Pinned {
		prefix = "0"
	}
	return Record{
		ClientID: n.ClientID,
		Kind:     KindNote,
		ParentID: n.ItemClientID,
		Payload:  payload,
		SortKey:  prefix + n.CreatedAt.UTC().Format(sortTimeLayout),
	}, nil
}

// NoteFromRecord decodes the note payload of r.
func NoteFromRecord(r Record) (Note, error) {
	if r.Kind != KindNote {
		return Note{}, fmt.Errorf("record %s is a %s, not a note", r.ClientID, r.Kind)
	}
	var n Note
	if err := json.Unmarshal(r.Payload, &n); err != nil {
		return Note{}, fmt.Errorf("decode note %s: %w", r.ClientID, err)
	}
	n.ClientID = r.ClientID
	n.ItemClientID = r.ParentID
	return n, nil
}

// NoteView is a note as listed to the user.
type NoteView struct {
	Note
	SyncInfo
}

func NoteViewFromRecord(r Record) (NoteView, error) {
	n, err := NoteFromRecord(r)
	if err != nil {
		return NoteView{}, err
	}
	return NoteView{Note: n, SyncInfo: syncInfo(r)}, nil
}
