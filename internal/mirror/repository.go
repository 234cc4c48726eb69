package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/cart-recovery/internal/domain"
)

var ErrRecordNotFound = errors.New("abandoned cart record not found")

// CartUpsert carries the coalesced cart state the sync engine mirrors to the
// remote store.
type CartUpsert struct {
	Key       string
	SessionID string
	UserID    string
	Email     string
	Items     []domain.CartLine
	Total     float64
}

// RecordRepository defines the operations against the remote record store.
// Consumers define narrower views of this interface where they need less.
type RecordRepository interface {
	Get(ctx context.Context, key string) (*domain.AbandonedCartRecord, error)

	// Upsert creates the record on first sync of a non-empty cart or updates
	// items, total and the abandonment clock on later syncs. A recovered
	// record is terminal and left untouched.
	Upsert(ctx context.Context, up CartUpsert) error

	// Delete removes the record when the cart empties without conversion.
	// Deleting a missing or recovered record is a no-op.
	Delete(ctx context.Context, key string) error

	// MarkRecovered freezes the record at checkout. Idempotent: marking an
	// already-recovered or missing record is a no-op.
	MarkRecovered(ctx context.Context, key string) error

	// RecordReminder increments the reminder counter after a successful send.
	RecordReminder(ctx context.Context, key string) error

	// ListOpen returns non-recovered records abandoned since the given time.
	ListOpen(ctx context.Context, since time.Time) ([]domain.AbandonedCartRecord, error)

	// ListUnreminded returns open records with an email and no reminders yet.
	ListUnreminded(ctx context.Context) ([]domain.AbandonedCartRecord, error)

	// CountRecovered counts records recovered since the given time.
	CountRecovered(ctx context.Context, since time.Time) (int64, error)
}
