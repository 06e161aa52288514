// Package config provides configuration loading and management for the application.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-metrics/internal/model"
	"github.com/yourorg/vault-metrics/internal/retry"
)

// envPrefix namespaces every variable; the unprefixed name is accepted as a fallback.
const envPrefix = "VAULTS"

// Serving modes of the list endpoint
const (
	ServingSnapshot = "snapshot"
	ServingLive     = "live"
)

// Config holds all application configuration
type Config struct {
	// HTTP listener
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"3001"`

	// Logging
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// ServingMode selects where GET /v1/vaults reads from: "snapshot" or "live"
	ServingMode    string        `envconfig:"SERVING_MODE" default:"snapshot"`
	FallbackMaxAge time.Duration `envconfig:"FALLBACK_MAX_AGE" default:"2m"`

	// Upstreams
	TonAPIURL       string        `envconfig:"TONAPI_URL" default:"https://tonapi.io"`
	TonAPIKey       string        `envconfig:"TONCENTER_API_KEY"`
	TonAPIRPS       float64       `envconfig:"TONAPI_RPS" default:"1"`
	TonClientURL    string        `envconfig:"TON_CLIENT_URL" default:"https://mainnet-v4.tonhubapi.com"`
	DedustAPIURL    string        `envconfig:"DEDUST_API_URL" default:"https://api.dedust.io/v3/graphql"`
	IPFSGateway     string        `envconfig:"IPFS_GATEWAY" default:"https://gateway.pinata.cloud/ipfs/"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"60s"`

	// Snapshot store
	RedisURL string `envconfig:"REDIS_CONNECTION_STRING" default:"redis://localhost:6379"`

	// Background refresher
	RefreshInterval    time.Duration `envconfig:"REFRESH_INTERVAL" default:"1m"`
	RefreshConcurrency int           `envconfig:"REFRESH_CONCURRENCY" default:"2"`

	// Retry policy around chain reads
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"6"`
	RetryMinBackoff  time.Duration `envconfig:"RETRY_MIN_BACKOFF" default:"2s"`
	RetryMaxBackoff  time.Duration `envconfig:"RETRY_MAX_BACKOFF" default:"20s"`

	// API request limiter
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// OpenTelemetry endpoint for observability, tracing is disabled when empty
	OtelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// SigningKey is a hex secp256k1 key; responses are signed when set
	SigningKey string `envconfig:"SIGNING_KEY"`
}

// Vault is the static configuration of one tracked vault.
type Vault struct {
	// Address in raw form
	Address string
	// KPIs holds the targets the vault is measured against
	KPIs model.KPISet
}

var defaultKPIs = model.KPISet{
	TVL:               "100000",
	LiquidityFraction: "0.001",
	Revenue:           "1000",
}

// DefaultVaults is the list of vaults seeded into the store on first run.
var DefaultVaults = []Vault{
	{Address: "0:bb309547a688b8eb328938a5765cb998334d2cea2b6dc511406f8274fb6d2220", KPIs: defaultKPIs},
	{Address: "0:b5bf01c8d51dff89a575321292dceb0b9cf96fbfb5a6f7c3c1a6d4db3c0c8aab", KPIs: defaultKPIs},
	{Address: "0:2b3c1f89500d2127c97f45778599a3745b48deb4d8fd22d6f3460adad9ac7133", KPIs: defaultKPIs},
}

// Load reads .env (when present) and the process environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("No .env file loaded")
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values envconfig cannot express as types.
func (c Config) Validate() error {
	if c.ServingMode != ServingSnapshot && c.ServingMode != ServingLive {
		return fmt.Errorf("invalid serving mode %q", c.ServingMode)
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New("retry max attempts must be at least 1")
	}
	if c.RetryMinBackoff > c.RetryMaxBackoff {
		return fmt.Errorf("retry min backoff %s exceeds max backoff %s", c.RetryMinBackoff, c.RetryMaxBackoff)
	}
	if c.RefreshConcurrency < 1 {
		return errors.New("refresh concurrency must be at least 1")
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RetryPolicy returns the policy applied to chain reads.
func (c Config) RetryPolicy(name string) retry.Policy {
	return retry.Policy{
		Name:        name,
		MaxAttempts: c.RetryMaxAttempts,
		MinBackoff:  c.RetryMinBackoff,
		MaxBackoff:  c.RetryMaxBackoff,
	}
}

// FindVault returns the static configuration of the vault at address.
func FindVault(vaults []Vault, address string) (Vault, bool) {
	for _, v := range vaults {
		if v.Address == address {
			return v, true
		}
	}
	return Vault{}, false
}
