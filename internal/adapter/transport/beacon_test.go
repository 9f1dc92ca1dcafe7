package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/V4T54L/logbeacon/internal/domain"
)

func TestAsyncBeacon(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Accepted Payload Is Delivered By Close", func(t *testing.T) {
		srv, requests := newCollector(t, http.StatusNoContent)
		beacon := NewAsyncBeacon(srv.URL, nil, 1024, 4, logger)

		if got := beacon.Queue([]byte(`[]`)); got != domain.BeaconAccepted {
			t.Fatalf("expected accepted, got %s", got)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := beacon.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}

		if got := requests(); len(got) != 1 || got[0].contentType != "application/json" {
			t.Errorf("expected one JSON beacon request, got %+v", got)
		}
	})

	t.Run("Oversized Payload Rejected", func(t *testing.T) {
		beacon := NewAsyncBeacon("http://127.0.0.1:0", nil, 8, 4, logger)
		defer beacon.Close(context.Background())

		if got := beacon.Queue(make([]byte, 9)); got != domain.BeaconRejected {
			t.Errorf("expected rejected, got %s", got)
		}
	})

	t.Run("Full Queue Rejects", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		beacon := NewAsyncBeacon(srv.URL, nil, 0, 1, logger)

		// One payload in flight at most and one buffered; keep queueing
		// until the buffer is full.
		rejected := false
		for i := 0; i < 3; i++ {
			if beacon.Queue([]byte(`[]`)) == domain.BeaconRejected {
				rejected = true
			}
		}
		close(release)
		beacon.Close(context.Background())

		if !rejected {
			t.Error("expected a full queue to reject")
		}
	})

	t.Run("Closed Beacon Rejects", func(t *testing.T) {
		beacon := NewAsyncBeacon("http://127.0.0.1:0", nil, 0, 1, logger)
		beacon.Close(context.Background())

		if got := beacon.Queue([]byte(`[]`)); got != domain.BeaconRejected {
			t.Errorf("expected rejected after close, got %s", got)
		}
	})
}
