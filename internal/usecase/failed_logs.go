package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/V4T54L/logbeacon/internal/adapter/metrics"
	"github.com/V4T54L/logbeacon/internal/domain"
)

const (
	// FailedLogsKey is the durable storage key of the failed-log set.
	FailedLogsKey = "__sdk_failed_logs"
	// MaxFailedEntries bounds the failed-log set; the oldest entries go first.
	MaxFailedEntries = 2 * HardCap
)

// FailedLogStore is the durable, capped set of entries whose delivery was
// exhausted. It is stored as one JSON array under FailedLogsKey.
type FailedLogStore struct {
	store   domain.Store
	max     int
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewFailedLogStore creates a FailedLogStore over store.
func NewFailedLogStore(store domain.Store, m *metrics.PipelineMetrics, logger *slog.Logger) *FailedLogStore {
	return &FailedLogStore{
		store:   store,
		max:     MaxFailedEntries,
		metrics: m,
		logger:  logger.With("component", "failed_logs"),
	}
}

// Persist appends entries to the stored set, keeping only the newest
// MaxFailedEntries. A stored set that cannot be decoded is replaced.
func (s *FailedLogStore) Persist(ctx context.Context, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(ctx, s.store.Get)
	if err != nil {
		return err
	}
	all := append(existing, entries...)
	if over := len(all) - s.max; over > 0 {
		s.logger.Debug("failed-log set full, evicting oldest", "evicted", over)
		all = all[over:]
	}

	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode failed logs: %w", err)
	}
	if err := s.store.Set(ctx, FailedLogsKey, raw); err != nil {
		return fmt.Errorf("%w: write failed logs: %v", domain.ErrStorageUnavailable, err)
	}
	s.metrics.SetFailedStoreEntries(len(all))
	s.logger.Debug("persisted failed logs", "added", len(entries), "total", len(all))
	return nil
}

// RetrieveAndClear returns the stored set and removes it. Stores that
// implement domain.Taker do both in one step; otherwise the set is read and
// then deleted. A missing, empty or corrupt set yields nil.
func (s *FailedLogStore) RetrieveAndClear(ctx context.Context) []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if taker, ok := s.store.(domain.Taker); ok {
		entries, err := s.read(ctx, taker.Take)
		if err != nil {
			s.logger.Debug("failed to take failed logs", "error", err)
			return nil
		}
		s.metrics.SetFailedStoreEntries(0)
		return entries
	}

	entries, err := s.read(ctx, s.store.Get)
	if err != nil {
		s.logger.Debug("failed to read failed logs", "error", err)
		return nil
	}
	if err := s.store.Delete(ctx, FailedLogsKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("failed to clear failed logs", "error", err)
	}
	s.metrics.SetFailedStoreEntries(0)
	return entries
}

// Count returns the number of stored entries.
func (s *FailedLogStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read(ctx, s.store.Get)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// read loads the set through fetch. A missing key is an empty set and a
// corrupt value is logged and treated as empty.
func (s *FailedLogStore) read(ctx context.Context, fetch func(context.Context, string) ([]byte, error)) ([]domain.LogEntry, error) {
	raw, err := fetch(ctx, FailedLogsKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read failed logs: %v", domain.ErrStorageUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []domain.LogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Debug("discarding unreadable failed-log set", "error", err)
		return nil, nil
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries, nil
}
