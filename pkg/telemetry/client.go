package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/V4T54L/logbeacon/internal/adapter/lifecycle"
	"github.com/V4T54L/logbeacon/internal/adapter/metrics"
	"github.com/V4T54L/logbeacon/internal/adapter/repository"
	"github.com/V4T54L/logbeacon/internal/adapter/repository/memory"
	"github.com/V4T54L/logbeacon/internal/adapter/transport"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
	"github.com/V4T54L/logbeacon/internal/pkg/logger"
	"github.com/V4T54L/logbeacon/internal/usecase"
)

// Client is one telemetry pipeline. Its methods are safe for concurrent use
// and never panic.
type Client struct {
	cfg    Config
	logger *slog.Logger

	sessions    *usecase.SessionTracker
	breadcrumbs *usecase.BreadcrumbRing
	page        *usecase.PageState
	pipeline    *usecase.EntryPipeline
	queue       *usecase.BatchQueue
	flusher     *usecase.FlushCoordinator
	failed      *usecase.FailedLogStore
	metrics     *metrics.PipelineMetrics

	beacon       *transport.AsyncBeacon
	unsubscribe  func()
	closers      []func() error
	resubmitted  int
	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates cfg, builds the pipeline and resubmits entries left in the
// durable store by a previous run. Only configuration problems are fatal;
// an unreachable durable store degrades to memory.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		level := cfg.LogLevel
		if cfg.Debug {
			level = "debug"
		}
		o.logger = logger.New(level)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	log := o.logger.With("app_id", cfg.AppID)

	c := &Client{
		cfg:     cfg,
		logger:  log.With("component", "client"),
		metrics: metrics.NewPipelineMetrics(o.registerer),
	}

	durable := o.durableStore
	if durable == nil {
		store, closeFn, err := repository.Open(ctx, cfg, log)
		if err != nil {
			c.logger.Warn("durable store unavailable, failed logs will not survive restarts",
				"backend", cfg.StoreBackend, "error", err)
			store, closeFn = memory.NewStore(), nil
		}
		durable = store
		if closeFn != nil {
			c.closers = append(c.closers, closeFn)
		}
	}
	sessionStore := o.sessionStore
	if sessionStore == nil {
		sessionStore = memory.NewStore()
	}

	c.sessions = usecase.NewSessionTracker(sessionStore, cfg.SessionTimeout, o.clock, log)
	c.breadcrumbs = usecase.NewBreadcrumbRing(cfg.MaxBreadcrumbs.Value(), o.clock, log)
	c.page = usecase.NewPageState(o.pageURL, cfg.UserID)
	c.failed = usecase.NewFailedLogStore(durable, c.metrics, log)

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(cfg.RequestTimeout, log)
	}
	sender := o.sender
	if sender == nil {
		sender = transport.NewHTTPSender(cfg.ReportURL, httpClient, cfg.Compression, log)
	}
	var beacon domain.Beacon
	switch {
	case o.beaconSet:
		beacon = o.beacon
	case !cfg.DisableBeacon:
		c.beacon = transport.NewAsyncBeacon(cfg.ReportURL, httpClient, cfg.BeaconMaxBytes, 0, log)
		beacon = c.beacon
	}

	deliverer := usecase.NewDeliverBatchUseCase(sender, beacon, c.failed, o.clock, log, c.metrics, o.maxAttempts, o.baseDelay)
	c.queue = usecase.NewBatchQueue(cfg.BatchSize, cfg.BatchInterval, o.clock, c.metrics, log)
	c.flusher = usecase.NewFlushCoordinator(c.queue, deliverer, c.failed, cfg.BatchSize, c.metrics, log)

	hooks := make([]domain.BeforeSendFunc, 0, len(o.hooks))
	for _, build := range o.hooks {
		hooks = append(hooks, build(log))
	}
	var hook domain.BeforeSendFunc
	switch len(hooks) {
	case 0:
	case 1:
		hook = hooks[0]
	default:
		hook = domain.Chain(hooks...)
	}

	envelope := &usecase.Envelope{
		AppID:       cfg.AppID,
		SDKVersion:  cfg.SDKVersion,
		Sessions:    c.sessions,
		Page:        c.page,
		Breadcrumbs: c.breadcrumbs,
		Clock:       o.clock,
	}
	c.pipeline = usecase.NewEntryPipeline(envelope, c.queue, cfg.SampleRate.Value(), hook, cfg.HookTimeout, c.metrics, log)
	c.pipeline.SetRandom(o.random)

	c.sessions.GetOrCreate(ctx)

	if o.hub != nil {
		c.unsubscribe = o.hub.Subscribe(c.handleLifecycle)
	}

	if cfg.SendDeviceInfo && o.device != nil {
		c.ReportDevice(ctx, *o.device)
	}

	c.resubmitted = c.flusher.ResubmitFailed(ctx)

	c.logger.Info("telemetry pipeline initialized",
		"sdk_version", cfg.SDKVersion,
		"batch_size", cfg.BatchSize,
		"sample_rate", cfg.SampleRate.Value(),
		"store", cfg.StoreBackend,
	)
	return c, nil
}

// Resubmitted returns the number of stored entries New sent again.
func (c *Client) Resubmitted() int {
	return c.resubmitted
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Pending returns the number of queued entries not yet flushed.
func (c *Client) Pending() int {
	return c.queue.Len()
}

// Metrics returns the pipeline's metric set.
func (c *Client) Metrics() *metrics.PipelineMetrics {
	return c.metrics
}

// Shutdown stops accepting entries, flushes the queue and waits for every
// in-flight delivery. If ctx expires first, batches still waiting for a
// retry are persisted instead. Later calls return the first result.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.closed.Store(true)
		c.pipeline.Close()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}

		c.flusher.FlushAsync()
		var errs []error
		if err := c.flusher.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain deliveries: %w", err))
		}
		if c.beacon != nil {
			if err := c.beacon.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("drain beacon: %w", err))
			}
		}
		c.flusher.Close()
		for _, closeFn := range c.closers {
			if err := closeFn(); err != nil {
				errs = append(errs, err)
			}
		}
		c.shutdownErr = errors.Join(errs...)
		c.logger.Info("telemetry pipeline stopped")
	})
	return c.shutdownErr
}

func (c *Client) handleLifecycle(e lifecycle.Event) {
	ctx := context.Background()
	switch e.Type {
	case lifecycle.Hidden, lifecycle.Teardown:
		c.flusher.FlushAsync()
	case lifecycle.Visible, lifecycle.Focus:
		c.sessions.Touch(ctx)
	case lifecycle.Navigation:
		c.recordNavigation(ctx, e.URL)
	}
}

// recordNavigation updates the current location and records a route change
// unless url is the last recorded one.
func (c *Client) recordNavigation(ctx context.Context, url string) {
	referrer := c.page.URL()
	if !c.page.Navigate(url) {
		c.logger.Debug("ignoring navigation to the same location", "url", url)
		return
	}
	c.breadcrumbs.Add(Breadcrumb{
		Type:    BreadcrumbNavigation,
		Message: "navigated to " + truncate(url, 150),
		Data:    map[string]any{"url": url},
	})
	c.pipeline.Submit(ctx, LogEntry{
		Type:     KindBehavior,
		Level:    LevelInfo,
		Category: "route_change",
		Data:     domain.NewBehaviorData("route_change", map[string]any{"url": url, "referrer": referrer}),
	})
}
