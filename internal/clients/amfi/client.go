// Package amfi downloads the AMFI scheme list, the fund universe source
package amfi

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/models"
)

const (
	DefaultURL     = "https://portal.amfiindia.com/DownloadSchemeData_Po.aspx?mf=0"
	DefaultTimeout = 60 * time.Second
)

// Column headers consumed from the scheme list
const (
	colAMC      = "AMC"
	colCode     = "Code"
	colName     = "Scheme Name"
	colCategory = "Scheme Category"
	colNAVName  = "Scheme NAV Name"
)

// Client fetches the scheme list
type Client struct {
	url        string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithURL sets the download URL
func WithURL(url string) ClientOption {
	return func(c *Client) {
		c.url = url
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new AMFI client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		url: DefaultURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		// the list is a single large download, one request per second is plenty
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  common.NewSilentLogger(),
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
	return fmt.Sprintf("AMFI error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// GetFunds downloads the scheme list and returns the direct-plan growth
// schemes, in file order.
func (c *Client) GetFunds(ctx context.Context) ([]models.Fund, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.url).Msg("AMFI scheme list request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   c.url,
		}
	}

	funds, err := ParseSchemeList(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Info().Int("funds", len(funds)).Msg("Loaded AMFI scheme list")
	return funds, nil
}

// ParseSchemeList reads the AMFI scheme CSV and keeps schemes whose NAV
// name mentions both "direct" and "growth", case-insensitively.
func ParseSchemeList(r io.Reader) ([]models.Fund, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scheme list is empty")
		}
		return nil, fmt.Errorf("failed to read scheme list header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range []string{colCode, colName, colNAVName} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("scheme list missing column %q", col)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var funds []models.Fund
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read scheme list: %w", err)
		}

		navName := strings.ToLower(field(rec, colNAVName))
		if !strings.Contains(navName, "direct") || !strings.Contains(navName, "growth") {
			continue
		}
		code := field(rec, colCode)
		if code == "" {
			continue
		}
		funds = append(funds, models.Fund{
			ID:       code,
			Name:     field(rec, colName),
			Category: field(rec, colCategory),
			AMC:      field(rec, colAMC),
		})
	}
	return funds, nil
}
