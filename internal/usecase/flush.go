package usecase

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/V4T54L/logbeacon/internal/adapter/metrics"
	"github.com/V4T54L/logbeacon/internal/domain"
)

// Deliverer sends one batch to completion.
type Deliverer interface {
	Deliver(ctx context.Context, batch []domain.LogEntry)
}

// FlushCoordinator moves batches from the queue to the transport. Every
// delivery runs on its own goroutine and is tracked so Drain can wait for
// it.
type FlushCoordinator struct {
	queue     *BatchQueue
	deliverer Deliverer
	failed    domain.FailedLogRepository
	batchSize int
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
	tracer    trace.Tracer

	// ctx is handed to every delivery; cancelling it makes pending
	// deliveries persist instead of waiting out their backoff.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders wg.Add in dispatch against Drain; once draining is set no
	// new delivery starts.
	mu       sync.Mutex
	draining bool
}

// NewFlushCoordinator creates a FlushCoordinator and installs it as the
// queue's sink.
func NewFlushCoordinator(
	queue *BatchQueue,
	deliverer Deliverer,
	failed domain.FailedLogRepository,
	batchSize int,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *FlushCoordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &FlushCoordinator{
		queue:     queue,
		deliverer: deliverer,
		failed:    failed,
		batchSize: batchSize,
		metrics:   m,
		logger:    logger.With("component", "flush"),
		tracer:    otel.Tracer("logbeacon/flush"),
		ctx:       ctx,
		cancel:    cancel,
	}
	queue.SetSink(func(batch []domain.LogEntry) { c.dispatch(batch) })
	return c
}

// FlushAsync releases the queue and starts delivering it. The returned
// channel closes when that delivery has finished.
func (c *FlushCoordinator) FlushAsync() <-chan struct{} {
	return c.dispatch(c.queue.Take())
}

// Flush releases the queue and waits until the batch has been delivered or
// persisted, or until ctx is done. Delivery continues after ctx expires.
func (c *FlushCoordinator) Flush(ctx context.Context) error {
	_, span := c.tracer.Start(ctx, "Flush")
	defer span.End()

	done := c.FlushAsync()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResubmitFailed drains the failed-log repository and dispatches its
// entries in batchSize chunks without waiting for them. It returns the
// number of entries resubmitted.
func (c *FlushCoordinator) ResubmitFailed(ctx context.Context) int {
	if c.failed == nil {
		return 0
	}
	entries := c.failed.RetrieveAndClear(ctx)
	if len(entries) == 0 {
		return 0
	}

	_, span := c.tracer.Start(ctx, "ResubmitFailed")
	defer span.End()
	span.SetAttributes(attribute.Int("entries", len(entries)))

	for start := 0; start < len(entries); start += c.batchSize {
		end := min(start+c.batchSize, len(entries))
		c.dispatch(entries[start:end:end])
	}
	c.metrics.Retransmitted(len(entries))
	c.logger.Info("resubmitting failed logs", "count", len(entries))
	return len(entries)
}

// Drain waits for every in-flight delivery. When ctx expires first, pending
// deliveries are told to persist immediately and Drain waits for that.
// Batches released after Drain starts are persisted without a send.
func (c *FlushCoordinator) Drain(ctx context.Context) error {
	c.mu.Lock()
	c.draining = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.logger.Debug("drain deadline reached, persisting in-flight batches")
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// Close cancels the delivery context without waiting.
func (c *FlushCoordinator) Close() {
	c.cancel()
}

func (c *FlushCoordinator) dispatch(batch []domain.LogEntry) <-chan struct{} {
	done := make(chan struct{})
	if len(batch) == 0 {
		close(done)
		return done
	}

	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		c.persistLate(batch)
		close(done)
		return done
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer close(done)
		c.deliverer.Deliver(c.ctx, batch)
	}()
	return done
}

func (c *FlushCoordinator) persistLate(batch []domain.LogEntry) {
	if c.failed == nil {
		c.logger.Debug("dropping batch released after drain", "count", len(batch))
		c.metrics.Batch(metrics.ResultDropped)
		return
	}
	if err := c.failed.Persist(context.Background(), batch); err != nil {
		c.logger.Debug("failed to persist batch released after drain", "error", err, "count", len(batch))
		c.metrics.Batch(metrics.ResultDropped)
		return
	}
	c.metrics.Batch(metrics.ResultPersisted)
}
