package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/logbeacon/internal/domain"
)

// MockStore is an in-memory domain.Store with injectable errors.
type MockStore struct {
	mu        sync.Mutex
	Values    map[string][]byte
	GetErr    error
	SetErr    error
	DeleteErr error
	Deleted   []string
}

func NewMockStore() *MockStore {
	return &MockStore{Values: make(map[string][]byte)}
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.Values[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Values == nil {
		m.Values = make(map[string][]byte)
	}
	m.Values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Values, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

// MockSender is a domain.BatchSender that records payloads and returns
// errors from Errs in order; once Errs is exhausted it returns Err.
type MockSender struct {
	mu       sync.Mutex
	Payloads [][]byte
	Errs     []error
	Err      error
	// Called receives a signal after every Send when non-nil.
	Called chan struct{}
}

func (m *MockSender) Send(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	m.Payloads = append(m.Payloads, append([]byte(nil), payload...))
	err := m.Err
	if len(m.Errs) > 0 {
		err = m.Errs[0]
		m.Errs = m.Errs[1:]
	}
	m.mu.Unlock()

	if m.Called != nil {
		m.Called <- struct{}{}
	}
	return err
}

func (m *MockSender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Payloads)
}

func (m *MockSender) Payload(i int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Payloads[i]
}

// MockBeacon is a domain.Beacon returning a fixed result.
type MockBeacon struct {
	mu       sync.Mutex
	Missing  bool
	Result   domain.BeaconResult
	Panic    bool
	Payloads [][]byte
}

func (m *MockBeacon) Available() bool { return !m.Missing }

func (m *MockBeacon) Queue(payload []byte) domain.BeaconResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Panic {
		panic("beacon exploded")
	}
	m.Payloads = append(m.Payloads, append([]byte(nil), payload...))
	return m.Result
}

func (m *MockBeacon) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Payloads)
}

// MockFailedLogRepository records persisted entries in memory.
type MockFailedLogRepository struct {
	mu         sync.Mutex
	Entries    []domain.LogEntry
	PersistErr error
	Retrieved  int
}

func (m *MockFailedLogRepository) Persist(ctx context.Context, entries []domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PersistErr != nil {
		return m.PersistErr
	}
	m.Entries = append(m.Entries, entries...)
	return nil
}

func (m *MockFailedLogRepository) RetrieveAndClear(ctx context.Context) []domain.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retrieved++
	out := m.Entries
	m.Entries = nil
	return out
}

func (m *MockFailedLogRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Entries), nil
}

func (m *MockFailedLogRepository) Snapshot() []domain.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LogEntry(nil), m.Entries...)
}
