// Package common contains shared constants and sentinel errors used across
// FridgeKeeper components.
package common

// ExpiryDateLayout is the wire and storage layout of item expiry dates.
const ExpiryDateLayout = "2006-01-02"

// Metadata keys persisted in the local metadata table.
const (
	MetaItemsWatermark = "sync.watermark.items"
	MetaNotesWatermark = "sync.watermark.notes"

	MetaSessionToken  = "session.token"
	MetaSessionMode   = "session.mode"
	MetaSessionReauth = "session.reauth"
)
