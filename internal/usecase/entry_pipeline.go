package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/logbeacon/internal/adapter/metrics"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

// Envelope stamps the ambient fields onto a freshly created entry.
type Envelope struct {
	AppID       string
	SDKVersion  string
	Sessions    *SessionTracker
	Page        *PageState
	Breadcrumbs *BreadcrumbRing
	Clock       clock.Clock
}

// Stamp fills the envelope of entry. Identity fields always come from the
// pipeline; time, location, user and level are kept when the producer set
// them. Error entries get a snapshot of the breadcrumb trail.
func (e *Envelope) Stamp(ctx context.Context, entry domain.LogEntry) domain.LogEntry {
	if entry.EventID == "" {
		entry.EventID = uuid.NewString()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = e.Clock.Now().UnixMilli()
	}
	entry.AppID = e.AppID
	entry.SDKVersion = e.SDKVersion
	entry.SessionID = e.Sessions.GetOrCreate(ctx)
	if entry.PageURL == "" {
		entry.PageURL = e.Page.URL()
	}
	if entry.UserID == "" {
		entry.UserID = e.Page.UserID()
	}
	if entry.Level == "" {
		entry.Level = domain.LevelInfo
		if entry.Type == domain.KindError {
			entry.Level = domain.LevelError
		}
	}
	if entry.Type == domain.KindError && entry.Breadcrumbs == nil && e.Breadcrumbs != nil {
		entry.Breadcrumbs = e.Breadcrumbs.Snapshot()
	}
	return entry
}

// Enqueuer accepts entries that passed sampling and the hook.
type Enqueuer interface {
	Enqueue(entry domain.LogEntry)
}

// EntryPipeline turns raw records into queued entries: stamp, sample, run
// the before-send hook, enqueue. Rejections are silent.
type EntryPipeline struct {
	envelope    *Envelope
	queue       Enqueuer
	sampleRate  float64
	hook        domain.BeforeSendFunc
	hookTimeout time.Duration
	random      func() float64
	metrics     *metrics.PipelineMetrics
	logger      *slog.Logger
	closed      atomic.Bool
}

// NewEntryPipeline creates an EntryPipeline. hook may be nil.
func NewEntryPipeline(
	envelope *Envelope,
	queue Enqueuer,
	sampleRate float64,
	hook domain.BeforeSendFunc,
	hookTimeout time.Duration,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *EntryPipeline {
	return &EntryPipeline{
		envelope:    envelope,
		queue:       queue,
		sampleRate:  sampleRate,
		hook:        hook,
		hookTimeout: hookTimeout,
		random:      rand.Float64,
		metrics:     m,
		logger:      logger.With("component", "entry_pipeline"),
	}
}

// SetRandom replaces the uniform [0,1) source used for sampling.
func (p *EntryPipeline) SetRandom(fn func() float64) {
	if fn != nil {
		p.random = fn
	}
}

// Close makes every later Submit a no-op.
func (p *EntryPipeline) Close() {
	p.closed.Store(true)
}

// Submit stamps entry and, if it survives sampling and the hook, enqueues
// it. It reports whether the entry was enqueued.
func (p *EntryPipeline) Submit(ctx context.Context, entry domain.LogEntry) bool {
	if p.closed.Load() {
		p.metrics.Entry(metrics.StatusClosed)
		return false
	}

	entry = p.envelope.Stamp(ctx, entry)

	if !p.sampled() {
		p.metrics.Entry(metrics.StatusSampleRate)
		return false
	}

	entry, status := p.applyHook(ctx, entry)
	if status != "" {
		p.metrics.Entry(status)
		p.logger.Debug("entry dropped", "reason", status, "event_id", entry.EventID, "type", entry.Type)
		return false
	}

	p.queue.Enqueue(entry)
	p.metrics.Entry(metrics.StatusAccepted)
	return true
}

// sampled draws once from [0,1). A rate of 1 keeps everything and a rate of
// 0 drops everything.
func (p *EntryPipeline) sampled() bool {
	if p.sampleRate >= 1 {
		return true
	}
	if p.sampleRate <= 0 {
		return false
	}
	return p.random() <= p.sampleRate
}

type hookOutcome struct {
	verdict domain.Verdict
	err     error
}

// applyHook runs the before-send hook with a deadline. It returns the entry
// to enqueue, or a non-empty drop status.
func (p *EntryPipeline) applyHook(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, string) {
	if p.hook == nil {
		return entry, ""
	}

	hookCtx, cancel := context.WithTimeout(ctx, p.hookTimeout)
	defer cancel()

	done := make(chan hookOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- hookOutcome{err: fmt.Errorf("beforeSend panicked: %v", r)}
			}
		}()
		v, err := p.hook(hookCtx, entry)
		done <- hookOutcome{verdict: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			p.logger.Debug("beforeSend failed", "error", out.err, "event_id", entry.EventID)
			return entry, metrics.StatusBeforeSend
		}
		kept, ok := out.verdict.Entry()
		if !ok {
			return entry, metrics.StatusBeforeSend
		}
		return kept, ""
	case <-hookCtx.Done():
		return entry, metrics.StatusHookTimeout
	}
}
