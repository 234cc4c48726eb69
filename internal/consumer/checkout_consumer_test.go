package consumer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockClearer struct {
	m     sync.Mutex
	calls []bool
}

func (m *mockClearer) Clear(_ context.Context, markRecovered bool) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls = append(m.calls, markRecovered)
	return nil
}

type mockIdentity struct{ key string }

func (m *mockIdentity) Key() string       { return m.key }
func (m *mockIdentity) SessionID() string { return m.key }

func newTestConsumer(key string) (*Consumer, *mockClearer) {
	clearer := &mockClearer{}
	return &Consumer{store: clearer, ids: &mockIdentity{key: key}}, clearer
}

func TestHandleMessage_MatchingIdentity_ClearsWithRecovery(t *testing.T) {
	sut, clearer := newTestConsumer("sess-1")

	sut.handleMessage(context.Background(), []byte(`{"identity_key":"sess-1","checkout_id":"co-9"}`))

	assert.Equal(t, []bool{true}, clearer.calls)
}

func TestHandleMessage_OtherIdentity_Ignored(t *testing.T) {
	sut, clearer := newTestConsumer("sess-1")

	sut.handleMessage(context.Background(), []byte(`{"identity_key":"sess-other"}`))

	assert.Empty(t, clearer.calls)
}

func TestHandleMessage_MalformedPayload_Skipped(t *testing.T) {
	sut, clearer := newTestConsumer("sess-1")

	sut.handleMessage(context.Background(), []byte(`not json`))
	sut.handleMessage(context.Background(), []byte(`{"identity_key":42}`))

	assert.Empty(t, clearer.calls)
}
