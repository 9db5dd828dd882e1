package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/awaistahir/smart-laundry/internal/engine"
	"github.com/awaistahir/smart-laundry/internal/metrics"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent = "SmartLaundry/1.0"

	// DefaultWaterPrice is assigned to places found by search, per gallon
	DefaultWaterPrice = 0.012
)

var ErrLocationNotFound = errors.New("location not found")

// NominatimClient resolves free text to coordinates using OpenStreetMap Nominatim
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewNominatimClient creates a new geocoding client
func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &NominatimClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
	}
}

type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// ResolveLocation looks up query and returns the best match
func (c *NominatimClient) ResolveLocation(ctx context.Context, query string) (engine.LocationProfile, error) {
	loc, err := c.resolve(ctx, query)
	switch {
	case errors.Is(err, ErrLocationNotFound):
		metrics.GeocodeTotal.WithLabelValues("not_found").Inc()
	case err != nil:
		metrics.GeocodeTotal.WithLabelValues("error").Inc()
	default:
		metrics.GeocodeTotal.WithLabelValues("ok").Inc()
	}
	return loc, err
}

func (c *NominatimClient) resolve(ctx context.Context, query string) (engine.LocationProfile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return engine.LocationProfile{}, ErrLocationNotFound
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("limit", "1")

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("geocoding: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("geocoding: status %d", resp.StatusCode)
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
	bo.InitialInterval = time.Second // Nominatim allows one request per second
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return engine.LocationProfile{}, err
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return engine.LocationProfile{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(results) == 0 {
		return engine.LocationProfile{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	}

	r := results[0]
	name := PlaceName(r.DisplayName)
	if name == "" {
		return engine.LocationProfile{}, fmt.Errorf("%w: %q has no place name", ErrLocationNotFound, query)
	}

	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return engine.LocationProfile{}, fmt.Errorf("parsing latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return engine.LocationProfile{}, fmt.Errorf("parsing longitude %q: %w", r.Lon, err)
	}

	return engine.LocationProfile{
		Name:             name,
		Latitude:         lat,
		Longitude:        lon,
		WaterPricePerGal: DefaultWaterPrice,
	}, nil
}

// PlaceName shortens a Nominatim display name to its first component
func PlaceName(displayName string) string {
	name, _, _ := strings.Cut(displayName, ",")
	return strings.TrimSpace(name)
}
