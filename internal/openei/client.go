package openei

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/awaistahir/smart-laundry/internal/engine"
	"github.com/awaistahir/smart-laundry/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.openei.org/utility_rates"
	DemoAPIKey     = "DEMO_KEY"
)

// ErrNoTariff is returned when OpenEI has no residential tariff for a location
var ErrNoTariff = errors.New("no tariff found for location")

// Client fetches utility rate schedules from the OpenEI Utility Rate Database
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetry   time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetry bounds the total time spent retrying rate limited requests
func WithMaxRetry(d time.Duration) Option {
	return func(c *Client) { c.maxRetry = d }
}

// NewClient creates a new OpenEI client
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		apiKey = DemoAPIKey
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		maxRetry:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ratesResponse struct {
	Items []json.RawMessage `json:"items"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchSchedule fetches the first residential tariff covering lat/lon
func (c *Client) FetchSchedule(ctx context.Context, lat, lon float64) (*engine.RateSchedule, error) {
	start := time.Now()
	s, err := c.fetch(ctx, lat, lon)
	metrics.ScheduleFetchLatency.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrNoTariff):
		metrics.ScheduleFetchTotal.WithLabelValues("empty").Inc()
	case err != nil:
		metrics.ScheduleFetchTotal.WithLabelValues("error").Inc()
	default:
		metrics.ScheduleFetchTotal.WithLabelValues("ok").Inc()
	}
	return s, err
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (*engine.RateSchedule, error) {
	params := url.Values{}
	params.Add("version", "latest")
	params.Add("format", "json")
	params.Add("api_key", c.apiKey)
	params.Add("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Add("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Add("sector", "Residential")
	params.Add("detail", "full")
	params.Add("limit", "1")

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetching rates: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("fetching rates: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.maxRetry
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	var rr ratesResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("API error %s: %s", rr.Error.Code, rr.Error.Message)
	}
	if len(rr.Items) == 0 {
		return nil, ErrNoTariff
	}

	return ParseTariff(rr.Items[0])
}
