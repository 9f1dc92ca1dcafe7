// Package telemetry is the public entry point of the pipeline. A Client
// collects entries from producers, batches them and delivers them to the
// collector, keeping undeliverable batches in durable storage for the next
// run. Clients are independent; any number may coexist in one process.
package telemetry

import (
	"github.com/V4T54L/logbeacon/internal/adapter/lifecycle"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/config"
)

type (
	Config = config.Config
	Rate   = config.Rate
	Limit  = config.Limit

	LogEntry          = domain.LogEntry
	Kind              = domain.Kind
	Level             = domain.Level
	ErrorData         = domain.ErrorData
	PerformanceMetric = domain.PerformanceMetric
	BehaviorData      = domain.BehaviorData
	DeviceInfo        = domain.DeviceInfo
	Breadcrumb        = domain.Breadcrumb
	BreadcrumbType    = domain.BreadcrumbType
	Verdict           = domain.Verdict
	BeforeSendFunc    = domain.BeforeSendFunc
	Store             = domain.Store
	BatchSender       = domain.BatchSender
	Beacon            = domain.Beacon
	BeaconResult      = domain.BeaconResult

	Hub            = lifecycle.Hub
	LifecycleEvent = lifecycle.Event
)

const (
	KindError       = domain.KindError
	KindPerformance = domain.KindPerformance
	KindBehavior    = domain.KindBehavior
	KindCustom      = domain.KindCustom
	KindDeviceInfo  = domain.KindDeviceInfo

	LevelDebug = domain.LevelDebug
	LevelInfo  = domain.LevelInfo
	LevelWarn  = domain.LevelWarn
	LevelError = domain.LevelError

	BreadcrumbClick      = domain.BreadcrumbClick
	BreadcrumbNavigation = domain.BreadcrumbNavigation
	BreadcrumbConsole    = domain.BreadcrumbConsole
	BreadcrumbError      = domain.BreadcrumbError
	BreadcrumbCustom     = domain.BreadcrumbCustom
	BreadcrumbAPI        = domain.BreadcrumbAPI

	BeaconAccepted    = domain.BeaconAccepted
	BeaconRejected    = domain.BeaconRejected
	BeaconUnavailable = domain.BeaconUnavailable

	EventHidden     = lifecycle.Hidden
	EventVisible    = lifecycle.Visible
	EventFocus      = lifecycle.Focus
	EventTeardown   = lifecycle.Teardown
	EventNavigation = lifecycle.Navigation
)

var (
	ErrConfig             = domain.ErrConfig
	ErrStorageUnavailable = domain.ErrStorageUnavailable
	ErrClosed             = domain.ErrClosed

	Keep  = domain.Keep
	Drop  = domain.Drop
	Chain = domain.Chain
)

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig(reportURL, appID string) Config {
	return config.Default(reportURL, appID)
}

// LoadConfig reads the configuration from LOGBEACON_* environment variables.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// RateOf returns a sample rate explicitly set to v; RateOf(0) drops every
// entry.
func RateOf(v float64) Rate { return config.RateOf(v) }

// LimitOf returns a breadcrumb capacity explicitly set to n; LimitOf(0)
// disables breadcrumbs.
func LimitOf(n int) Limit { return config.LimitOf(n) }

// NewHub creates a lifecycle hub for the host to emit events into.
var NewHub = lifecycle.NewHub
