package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/cart-recovery/internal/snapshot"
	"github.com/google/uuid"
)

// Resolver owns the identity key used to address the remote cart mirror.
// The session id is generated once per device profile and never rotated;
// signing in only changes which key future syncs target. A record written
// under the old session key is not migrated (last-write-wins mirror, one
// logical writer per key).
type Resolver struct {
	mu        sync.RWMutex
	sessionID string
	userID    string
	email     string
}

// NewResolver loads the persisted session id or generates and persists a new
// one. Generation happens at most once for the life of the device profile.
func NewResolver(ctx context.Context, store snapshot.Store) (*Resolver, error) {
	id, err := store.LoadSessionID(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		id = uuid.NewString()
		if errSave := store.SaveSessionID(ctx, id); errSave != nil {
			return nil, fmt.Errorf("failed to persist session id: %w", errSave)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session id: %w", err)
	}

	return &Resolver{sessionID: id}, nil
}

// SignIn binds an authenticated user to this device. Future syncs target the
// user id; the record created under the session id stays where it is.
func (r *Resolver) SignIn(userID, email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = userID
	r.email = email
}

func (r *Resolver) SignOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = ""
	r.email = ""
}

// Key returns the identity key for the remote mirror: the user id when
// authenticated, the durable session id otherwise.
func (r *Resolver) Key() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.userID != "" {
		return r.userID
	}
	return r.sessionID
}

func (r *Resolver) SessionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionID
}

func (r *Resolver) UserID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID
}

func (r *Resolver) Email() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.email
}
