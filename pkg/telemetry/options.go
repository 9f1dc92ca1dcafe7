package telemetry

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/logbeacon/internal/adapter/redact"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/clock"
)

type options struct {
	logger       *slog.Logger
	clock        clock.Clock
	sessionStore domain.Store
	durableStore domain.Store
	sender       domain.BatchSender
	beacon       domain.Beacon
	beaconSet    bool
	httpClient   *http.Client
	registerer   prometheus.Registerer
	hooks        []func(*slog.Logger) domain.BeforeSendFunc
	hub          *Hub
	device       *DeviceInfo
	random       func() float64
	maxAttempts  int
	baseDelay    time.Duration
	pageURL      string
}

// Option customizes a Client.
type Option func(*options)

// WithLogger sets the logger for internal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces the scheduler used for timestamps, timers and backoff.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithSessionStore sets the page-lifetime store for the session. Defaults to
// an in-memory store.
func WithSessionStore(store Store) Option {
	return func(o *options) { o.sessionStore = store }
}

// WithDurableStore sets the store holding failed logs across runs,
// overriding the configured backend.
func WithDurableStore(store Store) Option {
	return func(o *options) { o.durableStore = store }
}

// WithSender replaces the HTTP request path.
func WithSender(sender BatchSender) Option {
	return func(o *options) { o.sender = sender }
}

// WithBeacon replaces the beacon. A nil beacon disables the beacon path.
func WithBeacon(beacon Beacon) Option {
	return func(o *options) {
		o.beacon = beacon
		o.beaconSet = true
	}
}

// WithHTTPClient sets the client used by the default request path and beacon.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithRegisterer registers pipeline metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithBeforeSend adds a hook run on every entry before it is queued. Hooks
// run in the order they were added.
func WithBeforeSend(hook BeforeSendFunc) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, func(*slog.Logger) domain.BeforeSendFunc { return hook })
	}
}

// WithRedaction adds a hook replacing the values of fields with
// "[REDACTED]" wherever they appear in payloads.
func WithRedaction(fields ...string) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, func(logger *slog.Logger) domain.BeforeSendFunc {
			return redact.NewHook(fields, logger)
		})
	}
}

// WithLifecycle subscribes the client to hub.
func WithLifecycle(hub *Hub) Option {
	return func(o *options) { o.hub = hub }
}

// WithDeviceInfo provides the descriptor sent at start when SendDeviceInfo
// is set.
func WithDeviceInfo(info DeviceInfo) Option {
	return func(o *options) { o.device = &info }
}

// WithRandom replaces the uniform [0,1) source used for sampling.
func WithRandom(fn func() float64) Option {
	return func(o *options) { o.random = fn }
}

// WithRetry overrides the attempt count and the first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.baseDelay = baseDelay
	}
}

// WithPageURL sets the initial location stamped on entries.
func WithPageURL(url string) Option {
	return func(o *options) { o.pageURL = url }
}
