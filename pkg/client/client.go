// Package client provides the JupiterOne API client: an authenticated GraphQL
// and bulk-ingestion transport with retries, the J1QL query engines wired to
// it, and thin wrappers around the mutation and admin endpoints.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/cache"
	"github.com/jupiterone/jupiterone-client-go/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultGraphQLURL is the US region GraphQL endpoint.
	DefaultGraphQLURL = "https://graphql.us.jupiterone.io"

	// DefaultSyncURL is the US region bulk ingestion (persister) API.
	DefaultSyncURL = "https://api.us.jupiterone.io"

	tracerName = "github.com/jupiterone/jupiterone-client-go/pkg/client"
)

// Client is the JupiterOne API client.
type Client struct {
	httpClient  *http.Client
	transport   *Transport
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// Config holds the client configuration.
type Config struct {
	// Credentials (REQUIRED)
	Account string
	Token   string

	// Endpoints
	GraphQLURL string
	SyncURL    string

	// HTTPTimeout bounds a single HTTP attempt.
	HTTPTimeout time.Duration

	// Retry
	Retry         RetryConfig
	DeferredRetry RetryConfig // deferred query submission

	// Deferred polling
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Concurrency
	MaxWorkers          int  // Max concurrent cursor page fetches
	AllowPartialResults bool // Return the ordered prefix when a parallel fetch fails

	// Rate Limiting
	RequestsPerSecond float64 // 0 disables the client-side throttle

	// Redis shares 429 cool-downs across clients of the same account and
	// backs the result cache. Optional.
	Redis *redis.Client

	// ResultCacheTTL enables the query result cache (requires Redis).
	ResultCacheTTL time.Duration

	// Logger overrides the global zerolog logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration for the US region with the default
// retry, polling and concurrency settings.
func DefaultConfig(account, token string) Config {
	return Config{
		Account:       account,
		Token:         token,
		GraphQLURL:    DefaultGraphQLURL,
		SyncURL:       DefaultSyncURL,
		HTTPTimeout:   60 * time.Second,
		Retry:         DefaultRetryConfig(),
		DeferredRetry: DeferredRetryConfig(),
		PollInterval:  200 * time.Millisecond,
		PollTimeout:   10 * time.Minute,
		MaxWorkers:    1,
	}
}

// New creates a new JupiterOne client.
func New(cfg Config) (*Client, error) {
	if cfg.Account == "" {
		return nil, fmt.Errorf("account is required")
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if err := validateURL(cfg.GraphQLURL); err != nil {
		return nil, fmt.Errorf("graphql url: %w", err)
	}

	if err := validateURL(cfg.SyncURL); err != nil {
		return nil, fmt.Errorf("sync url: %w", err)
	}

	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}

	if err := cfg.DeferredRetry.Validate(); err != nil {
		return nil, fmt.Errorf("deferred retry: %w", err)
	}

	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("http_timeout must be > 0 (got %s)", cfg.HTTPTimeout)
	}

	if cfg.MaxWorkers < 1 {
		return nil, fmt.Errorf("max_workers must be >= 1 (got %d)", cfg.MaxWorkers)
	}

	if cfg.PollInterval <= 0 || cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("poll_interval and poll_timeout must be > 0")
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must not be negative (got %v)", cfg.RequestsPerSecond)
	}

	if cfg.ResultCacheTTL > 0 && cfg.Redis == nil {
		return nil, fmt.Errorf("result cache requires a redis client")
	}

	// Initialize logger
	logger := log.With().Str("component", "jupiterone-client").Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "jupiterone-client").Logger()
	}

	// Create rate limit tracker (in-process cool-down when Redis is absent)
	rateLimiter := ratelimit.NewTracker(cfg.Redis, cfg.Account, cfg.RequestsPerSecond, logger)

	var cacheManager *cache.Manager
	if cfg.ResultCacheTTL > 0 {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	return &Client{
		httpClient:  httpClient,
		transport:   NewTransport(httpClient, cfg.Account, cfg.Token, rateLimiter, logger),
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// SetHTTPClient replaces the HTTP client used for all requests.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
	c.transport.httpClient = httpClient
}

// Transport returns the underlying transport for raw API calls.
func (c *Client) Transport() *Transport {
	return c.transport
}

// Close releases idle connections. The Redis client is owned by the caller
// and is left open.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}
