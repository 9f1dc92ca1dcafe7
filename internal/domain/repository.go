package domain

import "context"

// Store is a small string-keyed byte store. It models both the page-lifetime
// session storage and the durable storage that survives restarts.
// Implementations return ErrNotFound from Get when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Taker is implemented by stores that can read and remove a key in one
// atomic step. Take returns ErrNotFound when the key is absent.
type Taker interface {
	Take(ctx context.Context, key string) ([]byte, error)
}

// FailedLogRepository holds entries whose delivery exhausted every retry.
type FailedLogRepository interface {
	// Persist appends entries, dropping the oldest once the cap is exceeded.
	Persist(ctx context.Context, entries []LogEntry) error

	// RetrieveAndClear returns every persisted entry and empties the set.
	// An empty or unreadable set yields no entries and no error.
	RetrieveAndClear(ctx context.Context) []LogEntry

	// Count returns the number of persisted entries.
	Count(ctx context.Context) (int, error)
}

// BatchSender delivers one serialized batch with a blocking request that is
// expected to stay in flight through host teardown.
type BatchSender interface {
	Send(ctx context.Context, payload []byte) error
}

// BeaconResult is the synchronous acceptance signal of a Beacon.
type BeaconResult int

const (
	// BeaconAccepted means the payload was queued for delivery.
	BeaconAccepted BeaconResult = iota
	// BeaconRejected means the beacon exists but refused the payload
	// (too large, queue full).
	BeaconRejected
	// BeaconUnavailable means no beacon primitive is present.
	BeaconUnavailable
)

func (r BeaconResult) String() string {
	switch r {
	case BeaconAccepted:
		return "accepted"
	case BeaconRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// Beacon is a fire-and-forget, size-constrained delivery primitive whose
// queued work survives host teardown.
type Beacon interface {
	// Available is checked once, when the transport is constructed.
	Available() bool
	Queue(payload []byte) BeaconResult
}
