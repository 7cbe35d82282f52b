// Package fmp provides a client for the Financial Modeling Prep API
package fmp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
)

const (
	DefaultBaseURL   = "https://financialmodelingprep.com/api/v3"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	// EstimatesLimit covers enough fiscal years to match any report year.
	EstimatesLimit = 30
)

var statementPaths = map[models.StatementType]string{
	models.StatementIncome:       "/income-statement/{ticker}",
	models.StatementBalanceSheet: "/balance-sheet-statement/{ticker}",
	models.StatementCashFlow:     "/cash-flow-statement/{ticker}",
}

// Client implements the FundamentalsClient interface
type Client struct {
	baseURL string
	apiKey  string
	http    *resty.Client
	logger  *common.Logger
	limiter *rate.Limiter
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

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// NewClient creates a new FMP client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    resty.New().SetTimeout(DefaultTimeout),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a failed upstream call. It always unwraps to
// common.ErrUpstreamUnavailable.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("FMP API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

func (e *APIError) Unwrap() error {
	return common.ErrUpstreamUnavailable
}

// get performs a rate-limited GET request and returns the parsed body
func (c *Client) get(ctx context.Context, path, ticker string, params map[string]string) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", strings.ToUpper(ticker)).
		SetQueryParam("apikey", c.apiKey).
		SetQueryParams(params)

	c.logger.Debug().Str("path", path).Str("ticker", ticker).Msg("FMP API request")

	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return gjson.Result{}, &APIError{Message: err.Error(), Endpoint: path}
	}

	if resp.StatusCode() != http.StatusOK {
		body := string(resp.Body())
		if len(body) > 200 {
			body = body[:200]
		}
		return gjson.Result{}, &APIError{StatusCode: resp.StatusCode(), Message: body, Endpoint: path}
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &APIError{StatusCode: resp.StatusCode(), Message: "malformed JSON body", Endpoint: path}
	}

	result := gjson.ParseBytes(body)
	// FMP reports key and plan errors as a 200 with an "Error Message" object
	if msg := result.Get("Error Message"); msg.Exists() {
		return gjson.Result{}, &APIError{StatusCode: resp.StatusCode(), Message: msg.String(), Endpoint: path}
	}

	return result, nil
}

// getRecords fetches an endpoint that returns a JSON array of objects
func (c *Client) getRecords(ctx context.Context, path, ticker string, params map[string]string) ([]models.RawRecord, error) {
	result, err := c.get(ctx, path, ticker, params)
	if err != nil {
		return nil, err
	}
	if !result.IsArray() {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "expected JSON array", Endpoint: path}
	}

	items := result.Array()
	records := make([]models.RawRecord, 0, len(items))
	for _, item := range items {
		if rec := models.ParseRawRecord(item); rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

func periodParams(g models.Granularity, limit int) map[string]string {
	return map[string]string{
		"period": string(g),
		"limit":  strconv.Itoa(limit),
	}
}

// GetStatements retrieves income, balance sheet or cash flow rows
func (c *Client) GetStatements(ctx context.Context, ticker string, st models.StatementType, g models.Granularity, limit int) ([]models.RawRecord, error) {
	path, ok := statementPaths[st]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported statement type %q", common.ErrInvalidArgument, st)
	}
	return c.getRecords(ctx, path, ticker, periodParams(g, limit))
}

// GetKeyMetrics retrieves provider key metrics rows
func (c *Client) GetKeyMetrics(ctx context.Context, ticker string, g models.Granularity, limit int) ([]models.RawRecord, error) {
	return c.getRecords(ctx, "/key-metrics/{ticker}", ticker, periodParams(g, limit))
}

// GetRatios retrieves provider financial ratio rows
func (c *Client) GetRatios(ctx context.Context, ticker string, g models.Granularity, limit int) ([]models.RawRecord, error) {
	return c.getRecords(ctx, "/financial-ratios/{ticker}", ticker, periodParams(g, limit))
}

// GetQuote retrieves the current quote. FMP wraps it in a one-element array.
func (c *Client) GetQuote(ctx context.Context, ticker string) (models.RawRecord, error) {
	records, err := c.getRecords(ctx, "/quote/{ticker}", ticker, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "empty quote", Endpoint: "/quote/{ticker}"}
	}
	return records[0], nil
}

// GetEstimates retrieves annual analyst estimates
func (c *Client) GetEstimates(ctx context.Context, ticker string, limit int) ([]models.RawRecord, error) {
	if limit <= 0 {
		limit = EstimatesLimit
	}
	return c.getRecords(ctx, "/analyst-estimates/{ticker}", ticker, periodParams(models.GranularityAnnual, limit))
}

// Ensure Client implements FundamentalsClient
var _ interfaces.FundamentalsClient = (*Client)(nil)
