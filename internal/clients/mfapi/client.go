// Package mfapi provides a client for the mfapi.in NAV history API
package mfapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/models"
)

// flexFloat64 handles NAV values sent either as a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL     = "https://api.mfapi.in"
	DefaultTimeout     = 10 * time.Second
	DefaultRateLimit   = 20 // requests per second
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 2 * time.Second

	dateLayout = "02-01-2006"
)

// Client fetches per-scheme NAV history
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *common.Logger
	limiter     *rate.Limiter
	maxAttempts int
	backoffBase time.Duration
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the per-request HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetry sets the total attempt count and the first retry delay.
// Each further delay doubles.
func WithRetry(maxAttempts int, base time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if base > 0 {
			c.backoffBase = base
		}
	}
}

// NewClient creates a new mfapi client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:      common.NewSilentLogger(),
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mfapi error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// retryable reports whether a status is worth another attempt
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type schemeMeta struct {
	FundHouse      string          `json:"fund_house"`
	SchemeType     string          `json:"scheme_type"`
	SchemeCategory string          `json:"scheme_category"`
	SchemeCode     json.RawMessage `json:"scheme_code"`
	SchemeName     string          `json:"scheme_name"`
}

type navRow struct {
	Date string      `json:"date"`
	NAV  flexFloat64 `json:"nav"`
}

type schemeResponse struct {
	Meta   schemeMeta `json:"meta"`
	Data   []navRow   `json:"data"`
	Status string     `json:"status"`
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.backoffBase << 6
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)
}

// get performs a rate-limited GET with retry on transport errors, 429 and 5xx
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	reqURL := c.baseURL + path
	attempt := 0

	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		c.logger.Debug().Str("url", reqURL).Int("attempt", attempt).Msg("mfapi request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Endpoint:   path,
			}
			if !apiErr.retryable() {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("endpoint", path).Dur("retry_in", wait).Msg("mfapi request failed, retrying")
	}

	return backoff.RetryNotify(op, c.newBackOff(ctx), notify)
}

// GetNAVHistory returns a scheme's NAV observations in ascending date order.
// An unknown scheme or one without data yields an empty slice, not an error.
func (c *Client) GetNAVHistory(ctx context.Context, schemeCode string) ([]models.NAVObservation, error) {
	path := fmt.Sprintf("/mf/%s", schemeCode)

	var resp schemeResponse
	if err := c.get(ctx, path, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return []models.NAVObservation{}, nil
		}
		return nil, err
	}

	obs := make([]models.NAVObservation, 0, len(resp.Data))
	for _, row := range resp.Data {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row.Date))
		if err != nil || row.NAV <= 0 {
			continue
		}
		obs = append(obs, models.NAVObservation{Date: date, NAV: float64(row.NAV)})
	}

	// the API lists newest first
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Date.Before(obs[j].Date)
	})

	c.logger.Debug().
		Str("scheme", schemeCode).
		Str("name", resp.Meta.SchemeName).
		Int("observations", len(obs)).
		Msg("Fetched NAV history")

	return obs, nil
}
