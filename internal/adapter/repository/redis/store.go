package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/logbeacon/internal/domain"
)

// Store implements domain.Store on plain Redis strings. Every key is
// prefixed with the namespace so several apps can share one server.
type Store struct {
	client    *redis.Client
	namespace string
	logger    *slog.Logger
}

// NewStore creates a Redis-backed Store.
func NewStore(client *redis.Client, namespace string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		namespace: namespace,
		logger:    logger.With("component", "redis_store"),
	}
}

// NewClient connects to addr and pings it.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis at %s: %v", domain.ErrStorageUnavailable, addr, err)
	}
	return client, nil
}

func (s *Store) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("GET", err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return s.wrap("SET", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return s.wrap("DEL", err)
	}
	return nil
}

// Take uses GETDEL, so concurrent readers never both receive the value.
func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("GETDEL", err)
	}
	return v, nil
}

func (s *Store) wrap(op string, err error) error {
	if isNetworkError(err) {
		s.logger.Debug("redis unreachable", "op", op, "error", err)
		return fmt.Errorf("%w: redis %s: %v", domain.ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
