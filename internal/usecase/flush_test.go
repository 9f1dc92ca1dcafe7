package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/domain/mocks"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

type fakeDeliverer struct {
	mu        sync.Mutex
	batches   [][]domain.LogEntry
	cancelled int
	// block makes Deliver wait for ctx cancellation.
	block bool
	// called receives every delivered batch when non-nil.
	called chan []domain.LogEntry
}

func (d *fakeDeliverer) Deliver(ctx context.Context, batch []domain.LogEntry) {
	if d.block {
		<-ctx.Done()
		d.mu.Lock()
		d.cancelled++
		d.mu.Unlock()
	}
	d.mu.Lock()
	d.batches = append(d.batches, batch)
	d.mu.Unlock()
	if d.called != nil {
		d.called <- batch
	}
}

func (d *fakeDeliverer) sizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.batches))
	for i, b := range d.batches {
		out[i] = len(b)
	}
	return out
}

func TestFlushCoordinator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	start := time.UnixMilli(1700000000000)

	newCoordinator := func(d Deliverer, failed domain.FailedLogRepository, batchSize int) (*FlushCoordinator, *BatchQueue) {
		q := NewBatchQueue(batchSize, 5*time.Second, clock.NewFake(start), nil, logger)
		return NewFlushCoordinator(q, d, failed, batchSize, nil, logger), q
	}

	t.Run("Flush Waits For Delivery", func(t *testing.T) {
		d := &fakeDeliverer{}
		c, q := newCoordinator(d, nil, 10)
		q.Enqueue(domain.LogEntry{Type: domain.KindCustom})
		q.Enqueue(domain.LogEntry{Type: domain.KindCustom})

		if err := c.Flush(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := d.sizes(); len(got) != 1 || got[0] != 2 {
			t.Errorf("expected one batch of 2, got %v", got)
		}
	})

	t.Run("Flush Of Empty Queue Sends Nothing", func(t *testing.T) {
		d := &fakeDeliverer{}
		c, _ := newCoordinator(d, nil, 10)

		if err := c.Flush(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(d.sizes()) != 0 {
			t.Errorf("expected no delivery, got %v", d.sizes())
		}
	})

	t.Run("Threshold Dispatches Asynchronously", func(t *testing.T) {
		d := &fakeDeliverer{called: make(chan []domain.LogEntry, 1)}
		_, q := newCoordinator(d, nil, 2)
		q.Enqueue(domain.LogEntry{Type: domain.KindCustom})
		q.Enqueue(domain.LogEntry{Type: domain.KindCustom})

		select {
		case batch := <-d.called:
			if len(batch) != 2 {
				t.Errorf("expected batch of 2, got %d", len(batch))
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	})

	t.Run("Resubmits Failed Logs In Chunks", func(t *testing.T) {
		d := &fakeDeliverer{}
		failed := &mocks.MockFailedLogRepository{Entries: entriesWithIDs(0, 25)}
		c, _ := newCoordinator(d, failed, 10)

		if n := c.ResubmitFailed(context.Background()); n != 25 {
			t.Fatalf("expected 25 resubmitted, got %d", n)
		}
		if err := c.Drain(context.Background()); err != nil {
			t.Fatalf("drain: %v", err)
		}

		got := d.sizes()
		slices.Sort(got)
		if !slices.Equal(got, []int{5, 10, 10}) {
			t.Errorf("expected chunks 10,10,5, got %v", got)
		}
		if len(failed.Snapshot()) != 0 || failed.Retrieved != 1 {
			t.Error("expected failed set to be read once and cleared")
		}
	})

	t.Run("Nothing To Resubmit", func(t *testing.T) {
		d := &fakeDeliverer{}
		c, _ := newCoordinator(d, &mocks.MockFailedLogRepository{}, 10)

		if n := c.ResubmitFailed(context.Background()); n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})

	t.Run("Batches After Drain Are Persisted", func(t *testing.T) {
		d := &fakeDeliverer{}
		failed := &mocks.MockFailedLogRepository{}
		c, q := newCoordinator(d, failed, 10)
		if err := c.Drain(context.Background()); err != nil {
			t.Fatalf("drain: %v", err)
		}

		q.Enqueue(domain.LogEntry{EventID: "late", Type: domain.KindCustom})
		select {
		case <-c.FlushAsync():
		case <-time.After(time.Second):
			t.Fatal("flush after drain did not complete")
		}

		if len(d.sizes()) != 0 {
			t.Errorf("expected no delivery after drain, got %v", d.sizes())
		}
		if got := failed.Snapshot(); len(got) != 1 || got[0].EventID != "late" {
			t.Errorf("expected the late batch in the failed set, got %v", got)
		}
	})

	t.Run("Drain Deadline Cancels Deliveries", func(t *testing.T) {
		d := &fakeDeliverer{block: true}
		c, q := newCoordinator(d, nil, 10)
		q.Enqueue(domain.LogEntry{Type: domain.KindCustom})
		c.FlushAsync()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := c.Drain(ctx)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if d.cancelled != 1 {
			t.Errorf("expected the in-flight delivery to observe cancellation, got %d", d.cancelled)
		}
	})
}
