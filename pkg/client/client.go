// Package client provides the HTTP transport for the RateBeer JSON API with
// cookie-based authentication, a shared request budget and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/ratebeer-client/pkg/jar"
	"github.com/Sternrassler/ratebeer-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the RateBeer site root.
const DefaultBaseURL = "http://www.ratebeer.com"

// Prometheus metrics for RateBeer client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratebeer_requests_total",
		Help: "Total RateBeer requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ratebeer_request_duration_seconds",
		Help:    "RateBeer request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratebeer_errors_total",
		Help: "Total RateBeer errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401/403 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client talks to the RateBeer site.
type Client struct {
	httpClient *http.Client
	redis      *redis.Client
	limiter    *ratelimit.Limiter
	jar        *jar.Jar
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for the request budget and persisted auth cookies
	Redis *redis.Client

	// BaseURL is the site root (default DefaultBaseURL)
	BaseURL string

	// APIKey is sent as the "k" parameter of every JSON endpoint (REQUIRED)
	APIKey string

	// UserAgent header
	UserAgent string

	// RateLimit is the shared request budget
	RateLimit ratelimit.Config

	// Timeouts
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, apiKey string) Config {
	return Config{
		Redis:          redis,
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		UserAgent:      "ratebeer-client/0.1.0",
		RateLimit:      ratelimit.DefaultConfig(),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    10 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// New creates a new RateBeer client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	logger := log.With().Str("component", "ratebeer-client").Logger()

	cookieJar, err := jar.New(baseURL, jar.NewStore(cfg.Redis))
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		httpClient: newHTTPClient(cfg, cookieJar),
		redis:      cfg.Redis,
		limiter:    ratelimit.NewLimiter(cfg.Redis, cfg.RateLimit, logger),
		jar:        cookieJar,
		baseURL:    baseURL,
		config:     cfg,
		logger:     logger,
	}, nil
}

func newHTTPClient(cfg Config, cookieJar http.CookieJar) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ConnectTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	}
	if cfg.ReadTimeout > 0 {
		transport.ResponseHeaderTimeout = cfg.ReadTimeout
	}
	return &http.Client{
		Transport: transport,
		Jar:       cookieJar,
		Timeout:   cfg.RequestTimeout,
	}
}

// Do performs an HTTP request through the request budget and the cookie jar.
// Responses with status >= 400 are returned as *APIError. Failures are not retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "waiting for request budget", Err: err}
		}
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing RateBeer request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: errClass,
			Message:    req.Method + " " + endpoint,
			Err:        err,
		}
	}

	if err := c.jar.Flush(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist auth cookies")
	}

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := c.classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("RateBeer request error")

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	return resp, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrorClassAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// getJSON performs a GET on a JSON endpoint, adding the API key, and decodes the body into out.
// An empty body leaves out untouched.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("k", c.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(path, query), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body of " + path, Err: err}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) endpointURL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// AuthEvidence returns the auth cookie pair currently held by the client.
func (c *Client) AuthEvidence() jar.Evidence {
	return c.jar.AuthEvidence()
}

// ClearAuthEvidence drops all cookies, including the persisted ones.
func (c *Client) ClearAuthEvidence(ctx context.Context) error {
	return c.jar.Clear(ctx)
}

// RestoreAuthEvidence loads auth cookies persisted by a previous run.
func (c *Client) RestoreAuthEvidence(ctx context.Context) error {
	return c.jar.Load(ctx)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing). The client's cookie
// jar is replaced by the persistent jar.
func (c *Client) SetHTTPClient(client *http.Client) {
	client.Jar = c.jar
	c.httpClient = client
}

// RateLimitState returns the request budget of the current window.
func (c *Client) RateLimitState(ctx context.Context) (*ratelimit.State, error) {
	return c.limiter.GetState(ctx)
}
