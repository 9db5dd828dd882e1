package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Raleigh NC", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `[{"display_name": "Raleigh, Wake County, North Carolina, United States", "lat": "35.7796", "lon": "-78.6382"}]`)
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "test-agent")
	loc, err := c.ResolveLocation(context.Background(), "Raleigh NC")
	require.NoError(t, err)

	assert.Equal(t, "Raleigh", loc.Name)
	assert.InDelta(t, 35.7796, loc.Latitude, 1e-9)
	assert.InDelta(t, -78.6382, loc.Longitude, 1e-9)
	assert.Equal(t, DefaultWaterPrice, loc.WaterPricePerGal)
}

func TestResolveLocationNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "")
	_, err := c.ResolveLocation(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestResolveLocationWithoutPlaceName(t *testing.T) {
	for _, name := range []string{``, `   `, `, Wake County`} {
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `[{"display_name": %q, "lat": "35.7796", "lon": "-78.6382"}]`, name)
			}))
			defer srv.Close()

			_, err := NewNominatimClient(srv.URL, "").ResolveLocation(context.Background(), "Raleigh")
			assert.ErrorIs(t, err, ErrLocationNotFound)
		})
	}
}

func TestResolveLocationEmptyQuery(t *testing.T) {
	c := NewNominatimClient("http://127.0.0.1:0", "")
	_, err := c.ResolveLocation(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestResolveLocationBadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"display_name": "Nowhere", "lat": "north", "lon": "0"}]`)
	}))
	defer srv.Close()

	_, err := NewNominatimClient(srv.URL, "").ResolveLocation(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocationNotFound)
}

func TestResolveLocationServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewNominatimClient(srv.URL, "").ResolveLocation(context.Background(), "Durham")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocationNotFound)
}

func TestPlaceName(t *testing.T) {
	assert.Equal(t, "Cary", PlaceName("Cary, Wake County, North Carolina"))
	assert.Equal(t, "Boise", PlaceName("Boise"))
	assert.Equal(t, "", PlaceName(""))
}
