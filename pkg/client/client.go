// Package client provides the resilient HTTP client for the animals API
// with retry, backoff, and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/animals-etl/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animals_requests_total",
		Help: "Total animals API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animals_request_duration_seconds",
		Help:    "Animals API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animals_errors_total",
		Help: "Total animals API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the animals API, e.g. "http://localhost:3123".
	BaseURL string

	// UserAgent header sent on every request.
	UserAgent string

	// RequestTimeout is the per-attempt timeout. Must exceed the upstream's
	// worst-case artificial delay (5-15s) with room to spare, otherwise a
	// slow-but-healthy response burns a retry attempt.
	RequestTimeout time.Duration

	// RetryableStatuses are the response codes treated as transient.
	RetryableStatuses map[int]bool

	// Retry controls attempt count and backoff.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "animals-etl/0.1.0",
		RequestTimeout: 45 * time.Second,
		RetryableStatuses: map[int]bool{
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		Retry: DefaultRetryConfig(),
	}
}

// Client issues requests against the animals API with retry and backoff.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// New creates a new animals API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 45 * time.Second
	}
	if cfg.RetryableStatuses == nil {
		cfg.RetryableStatuses = DefaultConfig(cfg.BaseURL).RetryableStatuses
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		config: cfg,
		logger: logging.NewLogger("api-client"),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// backoffDelay computes the next backoff under the client's random source.
func (c *Client) backoffDelay(attempt int) time.Duration {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.config.Retry.Delay(attempt, c.rand)
}

// GetJSON performs a GET request and decodes the 2xx response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON performs a POST request with a JSON body and decodes the 2xx
// response body into out (out may be nil to discard it).
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, out)
}

// do executes a request through the retry loop. Each attempt is a fresh
// network call with its own body reader; no request is issued more than
// MaxAttempts times.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	fullURL := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	return c.withRetry(ctx, path, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(path, "network_error").Inc()
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(path, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: c.classifyStatus(resp.StatusCode),
				Message:    resp.Status,
			}
			errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
			return apiErr
		}

		if out == nil {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// A truncated or garbled body from a flaky upstream is worth
			// one more attempt.
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
		return nil
	})
}

// classifyStatus categorizes a non-2xx status for retry decisions and
// observability. Only the configured retryable set counts as transient;
// an unlisted 5xx (e.g. 501) fails immediately like a 4xx.
func (c *Client) classifyStatus(status int) ErrorClass {
	if c.config.RetryableStatuses[status] {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
