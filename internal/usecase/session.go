package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

const (
	sessionIDKey           = "__sdk_sid"
	sessionLastActivityKey = "__sdk_slat"
)

// SessionTracker owns the renewable session identifier. The session is kept
// in page-lifetime storage; when that storage fails the tracker carries on
// with an in-memory session.
type SessionTracker struct {
	store   domain.Store
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	memory *domain.Session
}

// NewSessionTracker creates a SessionTracker with the given idle timeout.
func NewSessionTracker(store domain.Store, timeout time.Duration, clk clock.Clock, logger *slog.Logger) *SessionTracker {
	return &SessionTracker{
		store:   store,
		timeout: timeout,
		clock:   clk,
		logger:  logger.With("component", "session_tracker"),
	}
}

// GetOrCreate returns the current session id, minting a new one when no
// session exists or it has been idle longer than the timeout. Either way
// the last-activity timestamp is moved to now.
func (t *SessionTracker) GetOrCreate(ctx context.Context) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	session, ok := t.load(ctx)
	if !ok || t.expired(session, now) {
		session = domain.Session{ID: uuid.NewString()}
		t.logger.Debug("minted new session", "session_id", session.ID)
	}
	session.LastActivity = now
	t.save(ctx, session)
	return session.ID
}

// Touch records user activity. It only extends a live session: a missing or
// expired session is left for the next GetOrCreate to replace.
func (t *SessionTracker) Touch(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	session, ok := t.load(ctx)
	if !ok || t.expired(session, now) {
		return
	}
	session.LastActivity = now
	t.save(ctx, session)
}

func (t *SessionTracker) expired(s domain.Session, now time.Time) bool {
	return now.Sub(s.LastActivity) > t.timeout
}

func (t *SessionTracker) load(ctx context.Context) (domain.Session, bool) {
	id, err := t.store.Get(ctx, sessionIDKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Session{}, false
		}
		t.logger.Debug("session storage unavailable, using in-memory session", "error", err)
		if t.memory == nil {
			return domain.Session{}, false
		}
		return *t.memory, true
	}

	var lastActivity time.Time
	raw, err := t.store.Get(ctx, sessionLastActivityKey)
	if err == nil {
		if ms, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
			lastActivity = time.UnixMilli(ms)
		}
	}
	// A missing or unreadable timestamp leaves lastActivity at zero, which
	// reads as expired.
	return domain.Session{ID: string(id), LastActivity: lastActivity}, len(id) > 0
}

func (t *SessionTracker) save(ctx context.Context, s domain.Session) {
	t.memory = &s
	if err := t.store.Set(ctx, sessionIDKey, []byte(s.ID)); err != nil {
		t.logger.Debug("failed to persist session id", "error", err)
		return
	}
	ts := strconv.FormatInt(s.LastActivity.UnixMilli(), 10)
	if err := t.store.Set(ctx, sessionLastActivityKey, []byte(ts)); err != nil {
		t.logger.Debug("failed to persist session activity", "error", err)
	}
}
