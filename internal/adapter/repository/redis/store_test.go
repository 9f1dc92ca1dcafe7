package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/V4T54L/logbeacon/internal/domain"
)

// Runs against a live server only when LOGBEACON_TEST_REDIS_ADDR is set,
// e.g. the one from docker-compose.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("LOGBEACON_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LOGBEACON_TEST_REDIS_ADDR not set")
	}
	client, err := NewClient(context.Background(), addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(client, "logbeacon-test-"+uuid.NewString(), logger)
}

func TestStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q (%v)", got, err)
	}

	got, err = store.Take(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("take: expected v, got %q (%v)", got, err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected key removed by take, got %v", err)
	}

	_ = store.Set(ctx, "k", []byte("v"))
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(context.Background(), "127.0.0.1:1")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}
