package reminder

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

type mockRecords struct {
	m       sync.Mutex
	records []domain.AbandonedCartRecord
	listErr error
	marked  map[string]int
	markErr error
}

func (m *mockRecords) ListUnreminded(context.Context) ([]domain.AbandonedCartRecord, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.records, nil
}

func (m *mockRecords) RecordReminder(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	if m.marked == nil {
		m.marked = map[string]int{}
	}
	m.marked[key]++
	return nil
}

type mockNotifier struct {
	m      sync.Mutex
	sent   []Notification
	errFor map[string]error
}

func (m *mockNotifier) SendReminder(_ context.Context, n Notification) error {
	m.m.Lock()
	defer m.m.Unlock()
	if err, ok := m.errFor[n.RecordID]; ok {
		return err
	}
	m.sent = append(m.sent, n)
	return nil
}

func record(id, email string, sent int) domain.AbandonedCartRecord {
	return domain.AbandonedCartRecord{
		RecordID:      id,
		SessionID:     id,
		Email:         email,
		Items:         []domain.CartLine{{ProductID: "a", Quantity: 1, UnitPrice: 50}},
		Total:         69,
		RemindersSent: sent,
	}
}

func TestSendReminder_Success(t *testing.T) {
	records := &mockRecords{}
	notifier := &mockNotifier{}
	sut := NewScheduler(records, notifier, time.Millisecond)

	rec := record("sess-1", "shopper@example.com", 1)
	err := sut.SendReminder(context.Background(), &rec)

	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 2, notifier.sent[0].ReminderNumber)
	assert.Equal(t, 1, records.marked["sess-1"])
}

func TestSendReminder_RecoveredRejected(t *testing.T) {
	records := &mockRecords{}
	notifier := &mockNotifier{}
	sut := NewScheduler(records, notifier, time.Millisecond)

	rec := record("sess-1", "shopper@example.com", 0)
	rec.Recovered = true

	err := sut.SendReminder(context.Background(), &rec)

	assert.ErrorIs(t, err, ErrRecovered)
	assert.Empty(t, notifier.sent)
	assert.Empty(t, records.marked)
}

func TestSendReminder_NoEmailRejected(t *testing.T) {
	sut := NewScheduler(&mockRecords{}, &mockNotifier{}, time.Millisecond)

	rec := record("sess-1", "", 0)
	err := sut.SendReminder(context.Background(), &rec)

	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestSendReminder_CappedAtMax(t *testing.T) {
	records := &mockRecords{}
	notifier := &mockNotifier{}
	sut := NewScheduler(records, notifier, time.Millisecond)

	rec := record("sess-1", "shopper@example.com", MaxReminders)

	for i := 0; i < 5; i++ {
		err := sut.SendReminder(context.Background(), &rec)
		assert.ErrorIs(t, err, ErrCapped)
	}
	assert.Empty(t, notifier.sent)
}

func TestSendReminder_NotifierFailure_CountersUntouched(t *testing.T) {
	records := &mockRecords{}
	notifier := &mockNotifier{errFor: map[string]error{"sess-1": errors.New("smtp down")}}
	sut := NewScheduler(records, notifier, time.Millisecond)

	rec := record("sess-1", "shopper@example.com", 0)
	err := sut.SendReminder(context.Background(), &rec)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCapped)
	assert.Empty(t, records.marked)
}

func TestSendReminder_CounterFailureSurfaced(t *testing.T) {
	records := &mockRecords{markErr: errors.New("mirror unavailable")}
	notifier := &mockNotifier{}
	sut := NewScheduler(records, notifier, time.Millisecond)

	rec := record("sess-1", "shopper@example.com", 0)
	err := sut.SendReminder(context.Background(), &rec)

	// The email went out but the record still looks unreminded; a silent nil
	// here would let the next batch exceed the cap for this recipient.
	assert.ErrorIs(t, err, ErrCounterNotUpdated)
	assert.Len(t, notifier.sent, 1)
}

func TestSendBulk_CounterFailureCountedAsSent(t *testing.T) {
	records := &mockRecords{
		records: []domain.AbandonedCartRecord{record("sess-1", "a@example.com", 0)},
		markErr: errors.New("mirror unavailable"),
	}
	notifier := &mockNotifier{}
	sut := NewScheduler(records, notifier, time.Millisecond)

	result, err := sut.SendBulk(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Len(t, notifier.sent, 1)
}

func TestSendBulk_CountsSentAndFailed(t *testing.T) {
	records := &mockRecords{records: []domain.AbandonedCartRecord{
		record("sess-1", "a@example.com", 0),
		record("sess-2", "b@example.com", 0),
		record("sess-3", "c@example.com", 0),
	}}
	notifier := &mockNotifier{errFor: map[string]error{"sess-2": errors.New("bounce")}}
	sut := NewScheduler(records, notifier, time.Millisecond)

	result, err := sut.SendBulk(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)

	// One record's failure does not abort the remainder.
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "sess-1", notifier.sent[0].RecordID)
	assert.Equal(t, "sess-3", notifier.sent[1].RecordID)
}

func TestSendBulk_ListFailure(t *testing.T) {
	records := &mockRecords{listErr: errors.New("mirror unavailable")}
	sut := NewScheduler(records, &mockNotifier{}, time.Millisecond)

	_, err := sut.SendBulk(context.Background())
	assert.Error(t, err)
}

func TestSendBulk_RespectsCancellation(t *testing.T) {
	records := &mockRecords{records: []domain.AbandonedCartRecord{
		record("sess-1", "a@example.com", 0),
		record("sess-2", "b@example.com", 0),
	}}
	notifier := &mockNotifier{}
	sut := NewScheduler(records, notifier, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := sut.SendBulk(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Sent)
}
