package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/V4T54L/logbeacon/internal/adapter/metrics"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
)

// DeliverBatchUseCase sends one batch: beacon first, then a blocking
// request, retrying with exponential backoff. A batch that cannot be
// delivered ends up in the failed-log repository.
type DeliverBatchUseCase struct {
	sender      domain.BatchSender
	beacon      domain.Beacon
	failed      domain.FailedLogRepository
	clock       clock.Clock
	maxAttempts int
	baseDelay   time.Duration
	metrics     *metrics.PipelineMetrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewDeliverBatchUseCase creates a DeliverBatchUseCase. beacon may be nil;
// its availability is checked once, here.
func NewDeliverBatchUseCase(
	sender domain.BatchSender,
	beacon domain.Beacon,
	failed domain.FailedLogRepository,
	clk clock.Clock,
	logger *slog.Logger,
	m *metrics.PipelineMetrics,
	maxAttempts int,
	baseDelay time.Duration,
) *DeliverBatchUseCase {
	if beacon != nil && !beacon.Available() {
		beacon = nil
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &DeliverBatchUseCase{
		sender:      sender,
		beacon:      beacon,
		failed:      failed,
		clock:       clk,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		metrics:     m,
		logger:      logger.With("component", "transport"),
		tracer:      otel.Tracer("logbeacon/transport"),
	}
}

// Backoff returns the wait before attempt+1: baseDelay doubled per attempt.
func (uc *DeliverBatchUseCase) Backoff(attempt int) time.Duration {
	return uc.baseDelay << (attempt - 1)
}

// Deliver runs every attempt for batch and never reports an error: the batch
// is either delivered, persisted, or dropped and logged. Cancelling ctx cuts
// any backoff wait short and persists the batch at once.
func (uc *DeliverBatchUseCase) Deliver(ctx context.Context, batch []domain.LogEntry) {
	if len(batch) == 0 {
		return
	}

	ctx, span := uc.tracer.Start(ctx, "DeliverBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(batch)))

	for attempt := 1; ; attempt++ {
		err := uc.attempt(ctx, batch, attempt)
		if err == nil {
			span.SetAttributes(attribute.Int("batch.attempts", attempt))
			return
		}
		var encErr *unencodableError
		if errors.As(err, &encErr) {
			span.SetStatus(codes.Error, err.Error())
			uc.logger.Debug("dropping batch that cannot be encoded", "error", err, "count", len(batch))
			uc.metrics.Batch(metrics.ResultDropped)
			return
		}
		uc.logger.Debug("failed to send batch", "attempt", attempt, "error", err, "count", len(batch))
		if attempt >= uc.maxAttempts {
			span.SetStatus(codes.Error, err.Error())
			break
		}

		select {
		case <-uc.clock.After(uc.Backoff(attempt)):
		case <-ctx.Done():
			uc.logger.Debug("delivery interrupted during backoff, persisting batch", "attempt", attempt)
			uc.persist(ctx, batch)
			return
		}
	}
	uc.persist(ctx, batch)
}

// attempt serializes the batch afresh and sends it once. The beacon is only
// tried on the first attempt; a rejection or failure falls through to the
// request in the same attempt.
func (uc *DeliverBatchUseCase) attempt(ctx context.Context, batch []domain.LogEntry, attempt int) error {
	ctx, span := uc.tracer.Start(ctx, "DeliverAttempt", trace.WithAttributes(attribute.Int("attempt", attempt)))
	defer span.End()

	payload, err := json.Marshal(batch)
	if err != nil {
		return &unencodableError{err: err}
	}
	uc.metrics.Attempt()

	if attempt == 1 && uc.beacon != nil {
		res := uc.queueBeacon(payload)
		if res == domain.BeaconAccepted {
			uc.metrics.Batch(metrics.ResultBeacon)
			uc.logger.Debug("batch queued via beacon", "count", len(batch))
			return nil
		}
		uc.logger.Debug("beacon did not take batch, sending request", "result", res.String())
	}

	// The request must outlive a cancelled caller, e.g. during teardown.
	if err := uc.sender.Send(context.WithoutCancel(ctx), payload); err != nil {
		span.RecordError(err)
		return err
	}
	uc.metrics.Batch(metrics.ResultRequest)
	uc.logger.Debug("batch delivered", "attempt", attempt, "count", len(batch))
	return nil
}

func (uc *DeliverBatchUseCase) queueBeacon(payload []byte) (res domain.BeaconResult) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Debug("beacon panicked", "panic", r)
			res = domain.BeaconRejected
		}
	}()
	return uc.beacon.Queue(payload)
}

func (uc *DeliverBatchUseCase) persist(ctx context.Context, batch []domain.LogEntry) {
	if uc.failed == nil {
		uc.metrics.Batch(metrics.ResultDropped)
		return
	}
	if err := uc.failed.Persist(context.WithoutCancel(ctx), batch); err != nil {
		uc.logger.Debug("failed to persist undelivered batch, dropping it", "error", err, "count", len(batch))
		uc.metrics.Batch(metrics.ResultDropped)
		return
	}
	uc.metrics.Batch(metrics.ResultPersisted)
}

type unencodableError struct{ err error }

func (e *unencodableError) Error() string { return fmt.Sprintf("encode batch: %v", e.err) }
func (e *unencodableError) Unwrap() error { return e.err }
