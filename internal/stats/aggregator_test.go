package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/cart-recovery/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLister struct {
	m         sync.Mutex
	records   []domain.AbandonedCartRecord
	recovered int64
	listErr   error
	listCalls int
}

func (m *mockLister) ListOpen(ctx context.Context, _ time.Time) ([]domain.AbandonedCartRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.records, nil
}

func (m *mockLister) CountRecovered(ctx context.Context, _ time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	return m.recovered, nil
}

func openRecord(id string, total float64, reminders int, abandonedAgo time.Duration) domain.AbandonedCartRecord {
	return domain.AbandonedCartRecord{
		RecordID:      id,
		Total:         total,
		RemindersSent: reminders,
		AbandonedAt:   time.Now().Add(-abandonedAgo),
	}
}

func TestSnapshot_ComputesSummary(t *testing.T) {
	lister := &mockLister{
		records: []domain.AbandonedCartRecord{
			openRecord("sess-1", 69.50, 0, 2*time.Hour),
			openRecord("sess-2", 120, 2, 3*24*time.Hour),
			openRecord("sess-3", 10.49, 1, 12*time.Hour),
		},
		recovered: 4,
	}
	sut := NewAggregator(lister)

	summary, err := sut.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalCarts)
	assert.Equal(t, 199.99, summary.PotentialRevenue)
	assert.Equal(t, 2, summary.RemindedCount)
	assert.Equal(t, int64(4), summary.RecoveredCount)
	// Only the carts abandoned within the last day are hot leads.
	assert.Equal(t, 2, summary.HotLeads)
}

func TestSnapshot_EmptyRecordSet(t *testing.T) {
	sut := NewAggregator(&mockLister{})

	summary, err := sut.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.TotalCarts)
	assert.Zero(t, summary.PotentialRevenue)
	assert.Zero(t, summary.HotLeads)
}

func TestSnapshot_ListFailure(t *testing.T) {
	sut := NewAggregator(&mockLister{listErr: errors.New("mirror unavailable")})

	summary, err := sut.Snapshot(context.Background())
	assert.Error(t, err)
	assert.Nil(t, summary)
}

func TestSnapshot_CallerCancellationDoesNotAbortQuery(t *testing.T) {
	lister := &mockLister{records: []domain.AbandonedCartRecord{
		openRecord("sess-1", 50, 0, time.Hour),
	}}
	sut := NewAggregator(lister)

	// The query is shared by every caller collapsed into the same flight; one
	// caller's dead request context must not fail it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := sut.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCarts)
}

func TestSnapshot_NoCacheBetweenCalls(t *testing.T) {
	lister := &mockLister{records: []domain.AbandonedCartRecord{
		openRecord("sess-1", 50, 0, time.Hour),
	}}
	sut := NewAggregator(lister)

	_, err := sut.Snapshot(context.Background())
	require.NoError(t, err)

	lister.m.Lock()
	lister.records = append(lister.records, openRecord("sess-2", 25, 0, time.Hour))
	lister.m.Unlock()

	summary, err := sut.Snapshot(context.Background())
	require.NoError(t, err)

	// Recomputed from the current record set every time.
	assert.Equal(t, 2, summary.TotalCarts)
	assert.Equal(t, 2, lister.listCalls)
}
