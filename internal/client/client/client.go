package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
)

// Client is the remote API consumed by the sync engine.
type Client interface {
	CreateItem(ctx context.Context, item models.Item) (PushAck, error)
	DeleteItem(ctx context.Context, clientID string) error
	CreateNote(ctx context.Context, note models.Note) (PushAck, error)
	DeleteNote(ctx context.Context, clientID string) error

	// ItemsSince returns every item change after since. A zero since
	// requests the full collection.
	ItemsSince(ctx context.Context, since time.Time) (*ItemDelta, error)
	NotesSince(ctx context.Context, since time.Time) (*NoteDelta, error)

	Ping(ctx context.Context) error
}
