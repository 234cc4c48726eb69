package sync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fjod/cart-recovery/internal/domain"
	"github.com/fjod/cart-recovery/internal/mirror"
	"github.com/fjod/cart-recovery/internal/store"
)

// RecordWriter is the slice of the mirror repository the engine needs.
// Consumers define this interface, not the MongoDB implementation.
type RecordWriter interface {
	Upsert(ctx context.Context, up mirror.CartUpsert) error
	Delete(ctx context.Context, key string) error
}

// Identity supplies the key the mirror record is addressed by.
type Identity interface {
	Key() string
	SessionID() string
	UserID() string
	Email() string
}

const (
	DefaultDebounce    = 5 * time.Second
	DefaultMinInterval = 5 * time.Second

	writeTimeout = 10 * time.Second
)

type payload struct {
	lines []domain.CartLine
	total float64
}

// Engine mirrors the local cart to the remote record, best-effort. Each
// mutation replaces the pending payload and re-arms a single trailing
// debounce timer; the write fires once the debounce window has passed with
// no further mutations and the minimum interval since the last committed
// write has elapsed. Remote failures are logged and swallowed: the local
// cart is authoritative and the next mutation re-triggers the cycle.
type Engine struct {
	writer      RecordWriter
	ids         Identity
	debounce    time.Duration
	minInterval time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	pending    *payload
	lastSeq    uint64
	lastCommit time.Time
	committing bool
	closed     bool
}

func NewEngine(writer RecordWriter, ids Identity, debounce, minInterval time.Duration) *Engine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Engine{
		writer:      writer,
		ids:         ids,
		debounce:    debounce,
		minInterval: minInterval,
	}
}

// CartChanged is the store subscription entry point. A recovered clear
// cancels any pending write: the record was frozen by the recovery marker
// and must not be resynced or deleted for this cart generation.
func (e *Engine) CartChanged(ev store.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	// Mutations commit under the store's lock but notify outside it, so two
	// racing mutations can deliver their events in reverse commit order. The
	// sequence number restores last-write-wins: a stale delivery never
	// replaces a newer pending payload.
	if ev.Seq != 0 {
		if ev.Seq <= e.lastSeq {
			return
		}
		e.lastSeq = ev.Seq
	}

	if ev.Recovered {
		e.stopTimerLocked()
		e.pending = nil
		return
	}

	e.pending = &payload{lines: ev.Lines, total: ev.Totals.Total}

	delay := e.debounce
	if wait := e.minInterval - time.Since(e.lastCommit); wait > delay {
		delay = wait
	}

	// At most one in-flight timer: a new mutation replaces the pending one.
	e.stopTimerLocked()
	e.timer = time.AfterFunc(delay, e.fire)
}

// Flush writes any pending payload immediately, bypassing the debounce.
// Used on shutdown so the last local state is not lost to a stopped timer.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	e.stopTimerLocked()
	p := e.pending
	e.pending = nil
	e.mu.Unlock()

	if p != nil {
		e.commit(ctx, p)
	}
}

// Close stops the engine; pending writes are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.stopTimerLocked()
	e.pending = nil
}

func (e *Engine) fire() {
	e.mu.Lock()
	e.timer = nil
	if e.closed || e.pending == nil {
		e.mu.Unlock()
		return
	}

	// The delay computed when the timer was armed used the lastCommit of that
	// moment; a mutation arriving while a write is in flight would otherwise
	// slip through sooner than the interval allows. Re-check the gate against
	// the current commit state and re-arm for the remaining wait.
	wait := e.minInterval - time.Since(e.lastCommit)
	if e.committing || wait > 0 {
		if wait <= 0 {
			wait = e.minInterval
		}
		e.timer = time.AfterFunc(wait, e.fire)
		e.mu.Unlock()
		return
	}

	p := e.pending
	e.pending = nil
	e.committing = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	e.commit(ctx, p)

	e.mu.Lock()
	e.committing = false
	e.mu.Unlock()
}

func (e *Engine) commit(ctx context.Context, p *payload) {
	key := e.ids.Key()

	var err error
	if len(p.lines) == 0 {
		err = e.writer.Delete(ctx, key)
		if errors.Is(err, mirror.ErrRecordNotFound) {
			err = nil
		}
	} else {
		err = e.writer.Upsert(ctx, mirror.CartUpsert{
			Key:       key,
			SessionID: e.ids.SessionID(),
			UserID:    e.ids.UserID(),
			Email:     e.ids.Email(),
			Items:     p.lines,
			Total:     p.total,
		})
	}

	if err != nil {
		// Advisory mirror: log and move on. The next mutation resyncs.
		log.Printf("cart sync failed for key %s: %v", key, err)
		return
	}

	e.mu.Lock()
	e.lastCommit = time.Now()
	e.mu.Unlock()
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
