package openei

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/smart-laundry/internal/engine"
)

func table(period int) string {
	row := strings.TrimSuffix(strings.Repeat(fmt.Sprintf("%d,", period), 24), ",")
	rows := make([]string, 12)
	for i := range rows {
		rows[i] = "[" + row + "]"
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func tariffJSON(name string) string {
	return fmt.Sprintf(`{
		"name": %q,
		"energyweekdayschedule": %s,
		"energyweekendschedule": %s,
		"energyratestructure": [
			[{"rate": 0.21, "unit": "kWh"}],
			[{"rate": "0.08", "max": 500}, {"rate": 0.12}]
		]
	}`, name, table(0), table(1))
}

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithMaxRetry(2*time.Second))
}

func TestFetchSchedule(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "35.82", q.Get("lat"))
		assert.Equal(t, "-78.82", q.Get("lon"))
		assert.Equal(t, "Residential", q.Get("sector"))
		assert.Equal(t, "full", q.Get("detail"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "latest", q.Get("version"))
		fmt.Fprintf(w, `{"items": [%s]}`, tariffJSON("Duke Energy Progress"))
	})

	s, err := c.FetchSchedule(context.Background(), 35.82, -78.82)
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "Duke Energy Progress", s.ProviderName)
	require.Len(t, s.WeekdaySlots, 12)
	require.Len(t, s.WeekdaySlots[0], 24)
	require.Len(t, s.Periods, 2)
	require.NotNil(t, s.Periods[1][0].Rate)
	assert.Equal(t, 0.08, *s.Periods[1][0].Rate)
	assert.Equal(t, "kWh", s.Periods[0][0].Unit)

	wed := time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC)
	sat := time.Date(2024, 7, 13, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.21, engine.ResolvePrice(s, wed))
	assert.Equal(t, 0.08, engine.ResolvePrice(s, sat))
}

func TestFetchScheduleNoItems(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	})

	s, err := c.FetchSchedule(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNoTariff)
	assert.Nil(t, s)
}

func TestFetchScheduleAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": "API_KEY_INVALID", "message": "bad key"}}`)
	})

	_, err := c.FetchSchedule(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY_INVALID")
}

func TestFetchScheduleClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	})

	_, err := c.FetchSchedule(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchScheduleRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `{"items": [%s]}`, tariffJSON("Retry Utility"))
	})

	s, err := c.FetchSchedule(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Retry Utility", s.ProviderName)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchScheduleBadJSON(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [`)
	})

	_, err := c.FetchSchedule(context.Background(), 0, 0)
	require.Error(t, err)
}

func TestParseTariffKeepsGaps(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "Partial Co-op",
		"energyweekdayschedule": [[0, 1, "x", 2.5, -3]],
		"energyweekendschedule": "not a table",
		"energyratestructure": [
			[{"rate": 0.1}],
			[{"rate": "n/a"}],
			"junk"
		]
	}`)

	s, err := ParseTariff(raw)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{0, 1, -1, -1, -1}}, s.WeekdaySlots)
	assert.Nil(t, s.WeekendSlots)
	require.Len(t, s.Periods, 3)
	assert.Nil(t, s.Periods[1][0].Rate)
	assert.Nil(t, s.Periods[2])

	jan := func(hour int) time.Time { return time.Date(2025, 1, 8, hour, 0, 0, 0, time.UTC) }
	assert.Equal(t, 0.1, engine.ResolvePrice(s, jan(0)))
	assert.Equal(t, engine.FallbackPrice, engine.ResolvePrice(s, jan(1)))
	assert.Equal(t, engine.FallbackPrice, engine.ResolvePrice(s, jan(2)))
	assert.Equal(t, engine.FallbackPrice, engine.ResolvePrice(s, jan(10)))
	assert.Equal(t, engine.FallbackPrice, engine.ResolvePrice(s, time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)))
}

func TestParseTariffNotAnObject(t *testing.T) {
	_, err := ParseTariff(json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	_, err = ParseTariff(json.RawMessage(`null`))
	assert.ErrorIs(t, err, ErrNoTariff)
}
