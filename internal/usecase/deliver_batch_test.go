package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/V4T54L/logbeacon/internal/adapter/metrics"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/domain/mocks"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

func TestDeliverBatchUseCase_Deliver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	start := time.UnixMilli(1700000000000)
	batch := []domain.LogEntry{
		{EventID: "1", Type: domain.KindCustom, SessionID: "s", Timestamp: 1},
		{EventID: "2", Type: domain.KindError, SessionID: "s", Timestamp: 2},
	}

	deliverAsync := func(uc *DeliverBatchUseCase, ctx context.Context) <-chan struct{} {
		done := make(chan struct{})
		go func() {
			defer close(done)
			uc.Deliver(ctx, batch)
		}()
		return done
	}

	t.Run("Request Success", func(t *testing.T) {
		sender := &mocks.MockSender{}
		failed := &mocks.MockFailedLogRepository{}
		uc := NewDeliverBatchUseCase(sender, nil, failed, clock.NewFake(start), logger, nil, 3, time.Second)

		uc.Deliver(context.Background(), batch)

		if sender.Calls() != 1 {
			t.Fatalf("expected 1 request, got %d", sender.Calls())
		}
		var sent []domain.LogEntry
		if err := json.Unmarshal(sender.Payload(0), &sent); err != nil {
			t.Fatalf("payload is not a JSON array of entries: %v", err)
		}
		if len(sent) != 2 || sent[0].EventID != "1" {
			t.Errorf("unexpected payload: %+v", sent)
		}
		if len(failed.Snapshot()) != 0 {
			t.Error("nothing should be persisted on success")
		}
	})

	t.Run("Exhausted Retries Persist Batch", func(t *testing.T) {
		clk := clock.NewFake(start)
		sender := &mocks.MockSender{Err: &domain.StatusError{StatusCode: 503}}
		failed := &mocks.MockFailedLogRepository{}
		m := metrics.NewPipelineMetrics(nil)
		uc := NewDeliverBatchUseCase(sender, nil, failed, clk, logger, m, 3, time.Second)

		done := deliverAsync(uc, context.Background())

		clk.WaitForTimers(1)
		if sender.Calls() != 1 {
			t.Fatalf("expected 1 attempt before first backoff, got %d", sender.Calls())
		}
		clk.Advance(999 * time.Millisecond)
		if sender.Calls() != 1 {
			t.Fatalf("retried before the 1s backoff elapsed")
		}
		clk.Advance(time.Millisecond)

		clk.WaitForTimers(1)
		if sender.Calls() != 2 {
			t.Fatalf("expected 2 attempts before second backoff, got %d", sender.Calls())
		}
		clk.Advance(2 * time.Second)
		<-done

		if sender.Calls() != 3 {
			t.Errorf("expected exactly 3 attempts, got %d", sender.Calls())
		}
		if got := failed.Snapshot(); len(got) != 2 {
			t.Errorf("expected batch to be persisted, got %d entries", len(got))
		}
	})

	t.Run("Succeeds On Retry", func(t *testing.T) {
		clk := clock.NewFake(start)
		sender := &mocks.MockSender{Errs: []error{errors.New("connection reset")}}
		failed := &mocks.MockFailedLogRepository{}
		uc := NewDeliverBatchUseCase(sender, nil, failed, clk, logger, nil, 3, time.Second)

		done := deliverAsync(uc, context.Background())
		clk.WaitForTimers(1)
		clk.Advance(time.Second)
		<-done

		if sender.Calls() != 2 {
			t.Errorf("expected 2 attempts, got %d", sender.Calls())
		}
		if len(failed.Snapshot()) != 0 {
			t.Error("nothing should be persisted after a successful retry")
		}
	})

	t.Run("Beacon Accepted", func(t *testing.T) {
		sender := &mocks.MockSender{}
		beacon := &mocks.MockBeacon{Result: domain.BeaconAccepted}
		uc := NewDeliverBatchUseCase(sender, beacon, nil, clock.NewFake(start), logger, nil, 3, time.Second)

		uc.Deliver(context.Background(), batch)

		if beacon.Calls() != 1 || sender.Calls() != 0 {
			t.Errorf("expected beacon only, got beacon=%d request=%d", beacon.Calls(), sender.Calls())
		}
	})

	t.Run("Beacon Fallthrough", func(t *testing.T) {
		testCases := []struct {
			name   string
			beacon *mocks.MockBeacon
			calls  int
		}{
			{"Rejected", &mocks.MockBeacon{Result: domain.BeaconRejected}, 1},
			{"Panics", &mocks.MockBeacon{Panic: true}, 0},
			{"Unavailable", &mocks.MockBeacon{Missing: true}, 0},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				clk := clock.NewFake(start)
				sender := &mocks.MockSender{}
				uc := NewDeliverBatchUseCase(sender, tc.beacon, nil, clk, logger, nil, 3, time.Second)

				uc.Deliver(context.Background(), batch)

				if sender.Calls() != 1 {
					t.Errorf("expected request in the same attempt, got %d", sender.Calls())
				}
				if tc.beacon.Calls() != tc.calls {
					t.Errorf("expected %d recorded beacon calls, got %d", tc.calls, tc.beacon.Calls())
				}
				if clk.Pending() != 0 {
					t.Error("fallthrough must not wait for a backoff")
				}
			})
		}
	})

	t.Run("Beacon Only On First Attempt", func(t *testing.T) {
		clk := clock.NewFake(start)
		sender := &mocks.MockSender{Errs: []error{errors.New("offline")}}
		beacon := &mocks.MockBeacon{Result: domain.BeaconRejected}
		uc := NewDeliverBatchUseCase(sender, beacon, nil, clk, logger, nil, 3, time.Second)

		done := deliverAsync(uc, context.Background())
		clk.WaitForTimers(1)
		clk.Advance(time.Second)
		<-done

		if beacon.Calls() != 1 {
			t.Errorf("expected one beacon call, got %d", beacon.Calls())
		}
		if sender.Calls() != 2 {
			t.Errorf("expected two requests, got %d", sender.Calls())
		}
	})

	t.Run("Cancellation During Backoff Persists Immediately", func(t *testing.T) {
		clk := clock.NewFake(start)
		sender := &mocks.MockSender{Err: errors.New("offline")}
		failed := &mocks.MockFailedLogRepository{}
		uc := NewDeliverBatchUseCase(sender, nil, failed, clk, logger, nil, 3, time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		done := deliverAsync(uc, ctx)
		clk.WaitForTimers(1)
		cancel()
		<-done

		if sender.Calls() != 1 {
			t.Errorf("expected no further attempts, got %d", sender.Calls())
		}
		if len(failed.Snapshot()) != 2 {
			t.Errorf("expected batch to be persisted, got %d", len(failed.Snapshot()))
		}
	})

	t.Run("Persist Failure Drops Batch", func(t *testing.T) {
		clk := clock.NewFake(start)
		sender := &mocks.MockSender{Err: errors.New("offline")}
		failed := &mocks.MockFailedLogRepository{PersistErr: domain.ErrStorageUnavailable}
		uc := NewDeliverBatchUseCase(sender, nil, failed, clk, logger, nil, 1, time.Second)

		uc.Deliver(context.Background(), batch)

		if len(failed.Snapshot()) != 0 {
			t.Error("expected nothing persisted")
		}
	})

	t.Run("Unencodable Batch Is Dropped", func(t *testing.T) {
		sender := &mocks.MockSender{}
		failed := &mocks.MockFailedLogRepository{}
		uc := NewDeliverBatchUseCase(sender, nil, failed, clock.NewFake(start), logger, nil, 3, time.Second)

		uc.Deliver(context.Background(), []domain.LogEntry{{Data: make(chan int)}})

		if sender.Calls() != 0 || len(failed.Snapshot()) != 0 {
			t.Error("expected an unencodable batch to be dropped without sending")
		}
	})
}

func TestDeliverBatchUseCase_Backoff(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := NewDeliverBatchUseCase(&mocks.MockSender{}, nil, nil, clock.Real(), logger, nil, 3, time.Second)

	for attempt, want := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second} {
		if got := uc.Backoff(attempt); got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}
}
