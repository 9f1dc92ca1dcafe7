package transport

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/V4T54L/logbeacon/internal/domain"
)

const defaultBeaconQueue = 16

// AsyncBeacon is a fire-and-forget domain.Beacon. Accepted payloads are
// posted by a background worker; their outcome is only logged. Close drains
// the queue, which is how queued work survives teardown.
type AsyncBeacon struct {
	url      string
	client   *http.Client
	maxBytes int
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

// NewAsyncBeacon starts a beacon posting to url. Payloads larger than
// maxBytes are rejected; queueSize bounds the payloads waiting to be sent.
func NewAsyncBeacon(url string, client *http.Client, maxBytes, queueSize int, logger *slog.Logger) *AsyncBeacon {
	if client == nil {
		client = http.DefaultClient
	}
	if queueSize <= 0 {
		queueSize = defaultBeaconQueue
	}
	b := &AsyncBeacon{
		url:      url,
		client:   client,
		maxBytes: maxBytes,
		logger:   logger.With("component", "beacon"),
		queue:    make(chan []byte, queueSize),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *AsyncBeacon) Available() bool { return true }

// Queue accepts payload if it fits the size limit and there is room in the
// queue. It never blocks.
func (b *AsyncBeacon) Queue(payload []byte) domain.BeaconResult {
	if b.maxBytes > 0 && len(payload) > b.maxBytes {
		return domain.BeaconRejected
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return domain.BeaconRejected
	}
	select {
	case b.queue <- payload:
		return domain.BeaconAccepted
	default:
		return domain.BeaconRejected
	}
}

// Close stops accepting payloads and waits for queued ones to be sent, or
// for ctx to be done.
func (b *AsyncBeacon) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *AsyncBeacon) run() {
	defer close(b.done)
	for payload := range b.queue {
		b.post(payload)
	}
}

func (b *AsyncBeacon) post(payload []byte) {
	req, err := http.NewRequest(http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		b.logger.Debug("failed to build beacon request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Debug("beacon delivery failed", "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.logger.Debug("beacon rejected by collector", "status", resp.StatusCode)
	}
}
