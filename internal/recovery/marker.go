package recovery

import (
	"context"
	"fmt"
)

// RecordMarker is the slice of the mirror repository the marker needs.
type RecordMarker interface {
	MarkRecovered(ctx context.Context, key string) error
}

type Identity interface {
	Key() string
}

// Marker flags the current identity's remote record as recovered at the
// moment checkout completes. Best-effort and idempotent: the repository
// treats an already-recovered or missing record as a no-op, and the caller
// clears the local cart whether or not the mark lands.
type Marker struct {
	records RecordMarker
	ids     Identity
}

func NewMarker(records RecordMarker, ids Identity) *Marker {
	return &Marker{records: records, ids: ids}
}

func (m *Marker) MarkRecovered(ctx context.Context) error {
	if err := m.records.MarkRecovered(ctx, m.ids.Key()); err != nil {
		return fmt.Errorf("failed to mark cart recovered: %w", err)
	}
	return nil
}
