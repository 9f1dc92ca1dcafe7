package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/logbeacon/internal/domain"
)

const kvTableName = "logbeacon_kv"

// Store implements domain.Store on a key/value table, one row per
// (namespace, key).
type Store struct {
	db        *sql.DB
	namespace string
	logger    *slog.Logger
}

// NewStore creates a PostgreSQL-backed Store. Call EnsureSchema before use.
func NewStore(db *sql.DB, namespace string, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		namespace: namespace,
		logger:    logger.With("component", "postgres_store"),
	}
}

// Open connects to dsn with the lib/pq driver and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", domain.ErrStorageUnavailable, err)
	}
	return db, nil
}

// EnsureSchema creates the key/value table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+kvTableName+` (
			namespace  TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			value      BYTEA       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, key)
		);`)
	if err != nil {
		return s.wrap("create table", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM `+kvTableName+` WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("select", err)
	}
	return value, nil
}

// Set upserts the row for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+kvTableName+` (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at;`,
		s.namespace, key, value,
	)
	if err != nil {
		return s.wrap("upsert", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+kvTableName+` WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	)
	if err != nil {
		return s.wrap("delete", err)
	}
	return nil
}

// Take deletes the row and returns its value in one statement.
func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM `+kvTableName+` WHERE namespace = $1 AND key = $2 RETURNING value`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("take", err)
	}
	return value, nil
}

// wrap marks connection-class failures (SQLSTATE class 08) and closed
// pools as ErrStorageUnavailable.
func (s *Store) wrap(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return fmt.Errorf("%w: postgres %s: %v", domain.ErrStorageUnavailable, op, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: postgres %s: %v", domain.ErrStorageUnavailable, op, err)
	}
	s.logger.Debug("postgres query failed", "op", op, "error", err)
	return fmt.Errorf("postgres %s: %w", op, err)
}
