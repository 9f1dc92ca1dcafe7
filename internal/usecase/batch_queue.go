package usecase

import (
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/logbeacon/internal/adapter/metrics"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

// HardCap is the queue length that forces a flush regardless of batch size.
const HardCap = 50

const defaultBatchInterval = 5 * time.Second

// BatchQueue accumulates accepted entries until a threshold or the batch
// interval releases them to the sink. At most one interval timer is armed
// at a time.
type BatchQueue struct {
	mu       sync.Mutex
	entries  []domain.LogEntry
	timer    clock.Timer
	timerGen uint64

	batchSize int
	interval  time.Duration
	sink      func(batch []domain.LogEntry)
	clock     clock.Clock
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// NewBatchQueue creates a BatchQueue. The sink receives every released batch
// and must not block.
func NewBatchQueue(batchSize int, interval time.Duration, clk clock.Clock, m *metrics.PipelineMetrics, logger *slog.Logger) *BatchQueue {
	if batchSize < 1 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = defaultBatchInterval
	}
	return &BatchQueue{
		batchSize: batchSize,
		interval:  interval,
		clock:     clk,
		metrics:   m,
		logger:    logger.With("component", "batch_queue"),
	}
}

// SetSink installs the batch consumer. It must be called before Enqueue.
func (q *BatchQueue) SetSink(sink func(batch []domain.LogEntry)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sink = sink
}

// Enqueue appends entry. Reaching the batch size or HardCap releases the
// queue immediately; otherwise the interval timer is armed if idle.
func (q *BatchQueue) Enqueue(entry domain.LogEntry) {
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	if n := len(q.entries); n >= q.batchSize || n >= HardCap {
		batch := q.takeLocked()
		sink := q.sink
		q.mu.Unlock()
		q.logger.Debug("batch threshold reached", "count", len(batch))
		sink(batch)
		return
	}
	if q.timer == nil {
		gen := q.timerGen
		q.timer = q.clock.AfterFunc(q.interval, func() { q.onTimer(gen) })
	}
	q.metrics.SetQueueLength(len(q.entries))
	q.mu.Unlock()
}

// Take atomically empties the queue, cancels the pending timer and returns
// the previous contents.
func (q *BatchQueue) Take() []domain.LogEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.takeLocked()
}

// Len returns the number of queued entries.
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *BatchQueue) takeLocked() []domain.LogEntry {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	// A callback already in flight for the old timer sees a stale gen.
	q.timerGen++
	batch := q.entries
	q.entries = nil
	q.metrics.SetQueueLength(0)
	return batch
}

func (q *BatchQueue) onTimer(gen uint64) {
	q.mu.Lock()
	if gen != q.timerGen {
		q.mu.Unlock()
		return
	}
	batch := q.takeLocked()
	sink := q.sink
	q.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	q.logger.Debug("batch interval elapsed", "count", len(batch))
	sink(batch)
}
