package lifecycle

import (
	"context"

	"github.com/roach88/muster/internal/event"
)

// Store persists event records.
type Store interface {
	Insert(ctx context.Context, r *event.Record) error
	Update(ctx context.Context, r *event.Record) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*event.Record, error)
	GetByAnnouncement(ctx context.Context, ref string) (*event.Record, error)
	Count(ctx context.Context) (int, error)
	All(ctx context.Context) ([]*event.Record, error)
}

// Messenger owns the announcement posted for each event.
type Messenger interface {
	PostAnnouncement(ctx context.Context, e event.ExternalEvent) (ref string, err error)
	UpdateField(ctx context.Context, ref, name, value string) error
	UpdateStatusColor(ctx context.Context, ref string, color int) error
	DeleteAnnouncement(ctx context.Context, ref string) error
	ClearInteractivity(ctx context.Context, ref string) error
	AnnouncementURL(ref string) string
}

// SpaceProvider creates the discussion space of a started event.
type SpaceProvider interface {
	CreateSpace(ctx context.Context, name string) (ref string, err error)
	PostToSpace(ctx context.Context, space, text string) error
}

// Notifier delivers direct messages.
type Notifier interface {
	SendDirect(ctx context.Context, userID, text string) error
}

// Nop is a Messenger, SpaceProvider and Notifier that does nothing. It lets
// administrative tools drive the lifecycle without a chat connection.
type Nop struct{}

func (Nop) PostAnnouncement(context.Context, event.ExternalEvent) (string, error) { return "", nil }
func (Nop) UpdateField(context.Context, string, string, string) error             { return nil }
func (Nop) UpdateStatusColor(context.Context, string, int) error                  { return nil }
func (Nop) DeleteAnnouncement(context.Context, string) error                      { return nil }
func (Nop) ClearInteractivity(context.Context, string) error                      { return nil }
func (Nop) AnnouncementURL(string) string                                         { return "" }
func (Nop) CreateSpace(context.Context, string) (string, error)                   { return "", nil }
func (Nop) PostToSpace(context.Context, string, string) error                     { return nil }
func (Nop) SendDirect(context.Context, string, string) error                      { return nil }
