package snapshot

import (
	"context"
	"errors"

	"github.com/fjod/cart-recovery/internal/domain"
)

// Store is the device-local durable storage for the cart snapshot and the
// session identifier. Writes are synchronous; the snapshot must survive a
// process restart.
type Store interface {
	Load(ctx context.Context) ([]domain.CartLine, error)
	Save(ctx context.Context, lines []domain.CartLine) error
	Clear(ctx context.Context) error
	LoadSessionID(ctx context.Context) (string, error)
	SaveSessionID(ctx context.Context, id string) error
}

var ErrNoSnapshot = errors.New("no snapshot stored")
