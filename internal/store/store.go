package store

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/fjod/cart-recovery/internal/domain"
	"github.com/fjod/cart-recovery/internal/snapshot"
)

var (
	ErrLineNotFound    = errors.New("line not found in cart")
	ErrMissingProduct  = errors.New("line has no product id")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Event is published to subscribers after every committed mutation.
// Seq is assigned under the store lock and increases with each commit;
// notification happens outside the lock, so concurrent mutations can deliver
// out of order and subscribers use Seq to keep last-write-wins. Recovered
// marks the clear that follows a completed checkout; subscribers must not
// mirror that state back to the remote store.
type Event struct {
	Seq       uint64
	Lines     []domain.CartLine
	Totals    domain.Totals
	Recovered bool
}

type Listener func(Event)

// RecoveryMarker freezes the remote record at checkout.
// Consumers define this interface, not the recovery package.
type RecoveryMarker interface {
	MarkRecovered(ctx context.Context) error
}

// CartStore is the authoritative local cart. Mutations are synchronous:
// state and the device snapshot are updated before the call returns, then
// subscribers are notified. Remote mirroring happens in a subscriber and
// never blocks or fails a mutation.
type CartStore struct {
	mu        sync.Mutex
	pricing   domain.Pricing
	snapshots snapshot.Store
	marker    RecoveryMarker
	lines     []domain.CartLine
	seq       uint64
	listeners []Listener
}

func NewCartStore(pricing domain.Pricing, snapshots snapshot.Store, marker RecoveryMarker) *CartStore {
	return &CartStore{
		pricing:   pricing,
		snapshots: snapshots,
		marker:    marker,
	}
}

// Subscribe registers a listener for mutation events. Not safe to call once
// mutations have started; wire subscribers during startup.
func (s *CartStore) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Hydrate loads the persisted snapshot, if any. Called once on startup.
func (s *CartStore) Hydrate(ctx context.Context) error {
	lines, err := s.snapshots.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
	return nil
}

// AddLine appends a line, or accumulates quantity onto an existing line with
// the same product/size/color.
func (s *CartStore) AddLine(ctx context.Context, line domain.CartLine) error {
	if line.ProductID == "" {
		return ErrMissingProduct
	}
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	key := line.Key()
	merged := false
	for i := range s.lines {
		if s.lines[i].Key() == key {
			s.lines[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.lines = append(s.lines, line)
	}

	ev := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

func (s *CartStore) RemoveLine(ctx context.Context, key domain.LineKey) error {
	s.mu.Lock()
	removed := false
	for i, l := range s.lines {
		if l.Key() == key {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		s.mu.Unlock()
		return ErrLineNotFound
	}

	ev := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// SetQuantity replaces a line's quantity. A quantity of zero or less removes
// the line.
func (s *CartStore) SetQuantity(ctx context.Context, key domain.LineKey, quantity int) error {
	if quantity <= 0 {
		return s.RemoveLine(ctx, key)
	}

	s.mu.Lock()
	found := false
	for i := range s.lines {
		if s.lines[i].Key() == key {
			s.lines[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrLineNotFound
	}

	ev := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// Clear empties the cart. With markRecovered the remote record is marked
// first and awaited; whatever the outcome, local state and the snapshot are
// cleared unconditionally. A completed purchase is never blocked by
// bookkeeping failures.
func (s *CartStore) Clear(ctx context.Context, markRecovered bool) error {
	if markRecovered && s.marker != nil {
		if err := s.marker.MarkRecovered(ctx); err != nil {
			log.Printf("recovery mark failed: %v", err)
		}
	}

	s.mu.Lock()
	s.lines = nil
	if err := s.snapshots.Clear(ctx); err != nil {
		log.Printf("snapshot clear failed: %v", err)
	}
	s.seq++
	ev := Event{Seq: s.seq, Totals: s.pricing.TotalsFor(nil), Recovered: markRecovered}
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

func (s *CartStore) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

func (s *CartStore) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pricing.TotalsFor(s.lines)
}

func (s *CartStore) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// commitLocked persists the snapshot and builds the mutation event.
// A snapshot write failure is logged and absorbed: in-memory state is the
// source of truth and the mutation still commits.
func (s *CartStore) commitLocked(ctx context.Context) Event {
	if err := s.snapshots.Save(ctx, s.lines); err != nil {
		log.Printf("snapshot save failed: %v", err)
	}
	s.seq++
	return Event{
		Seq:    s.seq,
		Lines:  copyLines(s.lines),
		Totals: s.pricing.TotalsFor(s.lines),
	}
}

func (s *CartStore) notify(ev Event) {
	for _, l := range s.listeners {
		l(ev)
	}
}

func copyLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
