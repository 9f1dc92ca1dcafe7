package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/V4T54L/logbeacon/internal/domain"
)

const (
	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "LOGBEACON_"

	DefaultSDKVersion     = "0.1.0"
	DefaultSampleRate     = 1.0
	DefaultBatchSize      = 10
	DefaultBatchInterval  = 5 * time.Second
	DefaultMaxBreadcrumbs = 20
	DefaultSessionTimeout = 30 * time.Minute
	DefaultHookTimeout    = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultBeaconMaxBytes = 64 * 1024
)

// Store backends recognised by StoreBackend.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all pipeline configuration. A struct literal gets the same
// behavior as the environment defaults: unset SampleRate and MaxBreadcrumbs
// resolve to their defaults and the beacon stays on unless DisableBeacon.
type Config struct {
	ReportURL      string        `env:"REPORT_URL"`
	AppID          string        `env:"APP_ID"`
	UserID         string        `env:"USER_ID"`
	SDKVersion     string        `env:"SDK_VERSION" envDefault:"0.1.0"`
	SampleRate     Rate          `env:"SAMPLE_RATE" envDefault:"1.0"`
	BatchSize      int           `env:"BATCH_SIZE" envDefault:"10"`
	BatchInterval  time.Duration `env:"BATCH_INTERVAL" envDefault:"5s"`
	MaxBreadcrumbs Limit         `env:"MAX_BREADCRUMBS" envDefault:"20"`
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	HookTimeout    time.Duration `env:"HOOK_TIMEOUT" envDefault:"5s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	SendDeviceInfo bool          `env:"SEND_DEVICE_INFO" envDefault:"false"`
	Debug          bool          `env:"DEBUG" envDefault:"false"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`

	DisableBeacon  bool   `env:"DISABLE_BEACON" envDefault:"false"`
	BeaconMaxBytes int    `env:"BEACON_MAX_BYTES" envDefault:"65536"`
	Compression    string `env:"COMPRESSION" envDefault:"none"` // none or gzip

	StoreBackend   string `env:"STORE_BACKEND" envDefault:"memory"`
	StoreDir       string `env:"STORE_DIR" envDefault:".logbeacon"`
	StoreNamespace string `env:"STORE_NAMESPACE" envDefault:"logbeacon"`
	RedisAddr      string `env:"REDIS_ADDR"`
	PostgresURL    string `env:"POSTGRES_URL"`

	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads configuration from LOGBEACON_* environment variables and
// validates it.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads LOGBEACON_* environment variables without validating them,
// for callers that override fields before calling Validate.
func Parse() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
// An unset SampleRate or MaxBreadcrumbs takes its default; one set with
// RateOf or LimitOf is kept, zero included.
func (c Config) WithDefaults() Config {
	if !c.SampleRate.IsSet() {
		c.SampleRate = RateOf(DefaultSampleRate)
	}
	if !c.MaxBreadcrumbs.IsSet() {
		c.MaxBreadcrumbs = LimitOf(DefaultMaxBreadcrumbs)
	}
	if c.SDKVersion == "" {
		c.SDKVersion = DefaultSDKVersion
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = DefaultBatchInterval
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.HookTimeout <= 0 {
		c.HookTimeout = DefaultHookTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.BeaconMaxBytes <= 0 {
		c.BeaconMaxBytes = DefaultBeaconMaxBytes
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
	if c.StoreBackend == "" {
		c.StoreBackend = StoreMemory
	}
	if c.StoreNamespace == "" {
		c.StoreNamespace = "logbeacon"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Default returns a configuration with every default applied.
func Default(reportURL, appID string) Config {
	return Config{ReportURL: reportURL, AppID: appID}.WithDefaults()
}

// Validate reports the first configuration problem as an error wrapping
// domain.ErrConfig.
func (c Config) Validate() error {
	if c.ReportURL == "" {
		return fmt.Errorf("%w: reportUrl is required", domain.ErrConfig)
	}
	u, err := url.Parse(c.ReportURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: reportUrl %q is not an absolute URL", domain.ErrConfig, c.ReportURL)
	}
	if c.AppID == "" {
		return fmt.Errorf("%w: appId is required", domain.ErrConfig)
	}
	if rate := c.SampleRate.Value(); rate < 0 || rate > 1 {
		return fmt.Errorf("%w: sampleRate %v outside [0,1]", domain.ErrConfig, rate)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batchSize must be at least 1", domain.ErrConfig)
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("%w: batchInterval must be positive", domain.ErrConfig)
	}
	if c.MaxBreadcrumbs.Value() < 0 {
		return fmt.Errorf("%w: maxBreadcrumbs must not be negative", domain.ErrConfig)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("%w: sessionTimeout must be positive", domain.ErrConfig)
	}
	switch c.Compression {
	case "none", "gzip":
	default:
		return fmt.Errorf("%w: unknown compression %q", domain.ErrConfig, c.Compression)
	}
	switch c.StoreBackend {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis store requires REDIS_ADDR", domain.ErrConfig)
		}
	case StorePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("%w: postgres store requires POSTGRES_URL", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", domain.ErrConfig, c.StoreBackend)
	}
	return nil
}
