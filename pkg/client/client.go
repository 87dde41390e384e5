// Package client provides the scheduling API HTTP client with session
// bootstrap, error-budget gating, retries, and error classification.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tomhatch/slotscope/pkg/ratelimit"
)

// Prometheus metrics for scheduling API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotscope_requests_total",
		Help: "Total scheduling API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slotscope_request_duration_seconds",
		Help:    "Scheduling API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotscope_errors_total",
		Help: "Total scheduling API errors by class",
	}, []string{"class"})
)

// API action names on the scheduling controller endpoint.
const (
	// ActionProviderList lists providers accepting appointments at a facility.
	ActionProviderList = "GetAvilableApptProvidersList"

	// ActionSlotsByDate returns one page of a provider's open slots for a date.
	ActionSlotsByDate = "GetProviderSlotsByDate"
)

// csrfMetaPattern matches the _csrf meta tag on the practice landing page.
var csrfMetaPattern = regexp.MustCompile(`name="_csrf"\s+content="([\w+\-=/]+)"`)

// Client is the scheduling API client. After Bootstrap, its session
// header state is read-only and the client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	budget     *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
	token      string
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the scheduling API host root (e.g. "https://healow.com/apps").
	BaseURL string

	// PracticePath is the practice landing page path used for session
	// bootstrap, relative to BaseURL.
	PracticePath string

	// Redis client for shared error-budget state. Optional: nil disables
	// the outbound error budget.
	Redis *redis.Client

	// HTTPTimeout bounds each page request, retries excluded.
	HTTPTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, practicePath string) Config {
	return Config{
		BaseURL:      baseURL,
		PracticePath: practicePath,
		HTTPTimeout:  20 * time.Second,
	}
}

// New creates a new scheduling API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.PracticePath == "" {
		return nil, fmt.Errorf("practice path is required")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 20 * time.Second
	}

	logger := log.With().Str("component", "api-client").Logger()

	var budget *ratelimit.Tracker
	if cfg.Redis != nil {
		budget = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		budget: budget,
		config: cfg,
		logger: logger,
	}, nil
}

// Bootstrap loads the practice landing page and extracts the CSRF token
// the API requires on every call. Must be called once before any query;
// afterwards the session state is read-only.
func (c *Client) Bootstrap(ctx context.Context) error {
	url := c.config.BaseURL + c.config.PracticePath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create bootstrap request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteQueryError{
			Endpoint:   c.config.PracticePath,
			ErrorClass: ErrorClassNetwork,
			Message:    "session bootstrap failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &RemoteQueryError{
			Endpoint:   c.config.PracticePath,
			StatusCode: resp.StatusCode,
			ErrorClass: c.classifyStatus(resp.StatusCode),
			Message:    "session bootstrap failed",
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read bootstrap page: %w", err)
	}

	m := csrfMetaPattern.FindSubmatch(body)
	if m == nil {
		return fmt.Errorf("%w: no _csrf meta tag on practice page", ErrProtocolViolation)
	}
	c.token = string(m[1])

	c.logger.Info().Msg("Session bootstrapped")
	return nil
}

// Ready reports whether the session has been bootstrapped.
func (c *Client) Ready() bool {
	return c.token != ""
}

// PostForm performs a form-encoded POST to the given API action,
// gated by the error budget and retried per error class.
// Returns the raw response body on HTTP success.
func (c *Client) PostForm(ctx context.Context, action string, fields []FormField) ([]byte, error) {
	if c.token == "" {
		return nil, ErrSessionNotReady
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(action).Observe(time.Since(startTime).Seconds())
	}()

	// Gate on the shared error budget before going out.
	if c.budget != nil {
		allowed, err := c.budget.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Error budget check failed")
			return nil, fmt.Errorf("error budget check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", action).
				Msg("Request blocked by error budget")
			requestsTotal.WithLabelValues(action, "budget_blocked").Inc()
			return nil, fmt.Errorf("request blocked: error budget critical")
		}
	}

	body := encodeForm(fields)
	url := c.config.BaseURL + "/HealowWebController?action=" + action

	var respBody []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json,*/*;q=0.5")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
		req.Header.Set("X-CSRF-TOKEN", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", action).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(action, "network_error").Inc()
			c.recordBudgetError(ctx)
			return &RemoteQueryError{
				Endpoint:   action,
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        err,
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			errClass := c.classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(action, fmt.Sprintf("%d", resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", action).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Scheduling API request error")

			// Client errors don't drain the budget: the request itself
			// is wrong and retrying would not help.
			if errClass != ErrorClassClient {
				c.recordBudgetError(ctx)
			}

			return &RemoteQueryError{
				Endpoint:   action,
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Message:    resp.Status,
			}
		}

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &RemoteQueryError{
				Endpoint:   action,
				ErrorClass: ErrorClassNetwork,
				Message:    "read response body",
				Err:        err,
			}
		}

		requestsTotal.WithLabelValues(action, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return nil
	}

	err := retryWithBackoff(ctx, c.classifyError, attempt)
	if err != nil {
		return nil, err
	}

	return respBody, nil
}

// classifyError categorizes an attempt error for retry decisions.
func (c *Client) classifyError(err error) ErrorClass {
	if rqe, ok := err.(*RemoteQueryError); ok {
		return rqe.ErrorClass
	}
	return ErrorClassNetwork
}

// classifyStatus categorizes an HTTP status for observability and handling.
func (c *Client) classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// recordBudgetError drains the shared error budget, if configured.
func (c *Client) recordBudgetError(ctx context.Context) {
	if c.budget == nil {
		return
	}
	if err := c.budget.RecordError(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record error against budget")
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetToken sets the session token directly (for testing).
func (c *Client) SetToken(token string) {
	c.token = token
}
