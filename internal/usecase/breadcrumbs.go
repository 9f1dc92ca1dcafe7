package usecase

import (
	"log/slog"
	"sync"

	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

// BreadcrumbRing keeps the most recent breadcrumbs in insertion order and
// evicts the oldest once capacity is exceeded. A capacity of zero disables
// collection.
type BreadcrumbRing struct {
	mu       sync.Mutex
	items    []domain.Breadcrumb
	capacity int
	clock    clock.Clock
	logger   *slog.Logger
}

// NewBreadcrumbRing creates a ring holding at most capacity breadcrumbs.
func NewBreadcrumbRing(capacity int, clk clock.Clock, logger *slog.Logger) *BreadcrumbRing {
	if capacity < 0 {
		capacity = 0
	}
	return &BreadcrumbRing{
		items:    make([]domain.Breadcrumb, 0, capacity),
		capacity: capacity,
		clock:    clk,
		logger:   logger.With("component", "breadcrumbs"),
	}
}

// Add appends b, stamping its timestamp when unset.
func (r *BreadcrumbRing) Add(b domain.Breadcrumb) {
	if r.capacity == 0 {
		return
	}
	if b.Timestamp == 0 {
		b.Timestamp = r.clock.Now().UnixMilli()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, b)
	if over := len(r.items) - r.capacity; over > 0 {
		clear(r.items[:over]) // release payloads for GC
		r.items = append(r.items[:0], r.items[over:]...)
	}
	r.logger.Debug("breadcrumb added", "type", b.Type, "size", len(r.items))
}

// Snapshot returns a copy of the ring, oldest first, or nil when empty.
func (r *BreadcrumbRing) Snapshot() []domain.Breadcrumb {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return nil
	}
	out := make([]domain.Breadcrumb, len(r.items))
	copy(out, r.items)
	return out
}

// Clear drops every breadcrumb.
func (r *BreadcrumbRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.items)
	r.items = r.items[:0]
}

// Len returns the number of breadcrumbs held.
func (r *BreadcrumbRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
