package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/domain/mocks"
)

// takingStore adds an atomic Take to MockStore.
type takingStore struct {
	*mocks.MockStore
	takes int
}

func (s *takingStore) Take(ctx context.Context, key string) ([]byte, error) {
	s.takes++
	v, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return v, s.Delete(ctx, key)
}

func entriesWithIDs(from, to int) []domain.LogEntry {
	out := make([]domain.LogEntry, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, domain.LogEntry{EventID: strconv.Itoa(i), Type: domain.KindCustom, SessionID: "s", Timestamp: int64(i + 1)})
	}
	return out
}

func TestFailedLogStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("Persist Then Retrieve And Clear", func(t *testing.T) {
		store := mocks.NewMockStore()
		fs := NewFailedLogStore(store, nil, logger)

		if err := fs.Persist(ctx, entriesWithIDs(0, 3)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := fs.Persist(ctx, entriesWithIDs(3, 5)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got := fs.RetrieveAndClear(ctx)
		if len(got) != 5 || got[0].EventID != "0" || got[4].EventID != "4" {
			t.Fatalf("unexpected entries: %+v", got)
		}
		if _, ok := store.Values[FailedLogsKey]; ok {
			t.Error("expected key to be removed")
		}
		if again := fs.RetrieveAndClear(ctx); again != nil {
			t.Errorf("expected second retrieval to be empty, got %d", len(again))
		}
	})

	t.Run("Caps At Max Dropping Oldest", func(t *testing.T) {
		fs := NewFailedLogStore(mocks.NewMockStore(), nil, logger)
		for i := 0; i < 12; i++ {
			if err := fs.Persist(ctx, entriesWithIDs(i*10, i*10+10)); err != nil {
				t.Fatalf("persist %d: %v", i, err)
			}
		}

		n, err := fs.Count(ctx)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != MaxFailedEntries {
			t.Errorf("expected %d entries, got %d", MaxFailedEntries, n)
		}
		got := fs.RetrieveAndClear(ctx)
		if got[0].EventID != "20" || got[len(got)-1].EventID != "119" {
			t.Errorf("expected newest 100 entries, got %s..%s", got[0].EventID, got[len(got)-1].EventID)
		}
	})

	t.Run("Corrupt Set Is Discarded", func(t *testing.T) {
		store := mocks.NewMockStore()
		store.Values[FailedLogsKey] = []byte("{not json")
		fs := NewFailedLogStore(store, nil, logger)

		if got := fs.RetrieveAndClear(ctx); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
		store.Values[FailedLogsKey] = []byte("{not json")
		if err := fs.Persist(ctx, entriesWithIDs(0, 1)); err != nil {
			t.Fatalf("expected corrupt set to be replaced, got %v", err)
		}
		if n, _ := fs.Count(ctx); n != 1 {
			t.Errorf("expected 1 entry, got %d", n)
		}
	})

	t.Run("Storage Unavailable", func(t *testing.T) {
		store := mocks.NewMockStore()
		store.GetErr = errors.New("disk gone")
		fs := NewFailedLogStore(store, nil, logger)

		err := fs.Persist(ctx, entriesWithIDs(0, 1))
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
		if got := fs.RetrieveAndClear(ctx); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("Uses Atomic Take When Available", func(t *testing.T) {
		store := &takingStore{MockStore: mocks.NewMockStore()}
		fs := NewFailedLogStore(store, nil, logger)
		if err := fs.Persist(ctx, entriesWithIDs(0, 2)); err != nil {
			t.Fatalf("persist: %v", err)
		}

		got := fs.RetrieveAndClear(ctx)
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if store.takes != 1 {
			t.Errorf("expected Take to be used once, got %d", store.takes)
		}
	})
}
