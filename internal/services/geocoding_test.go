package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logisync-backend/internal/geo"
)

func newTestGeocoder(t *testing.T, body string, calls *int32) *GeocodingService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "14.599500,120.984200", r.URL.Query().Get("latlng"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	g, err := NewGeocodingService("test-key")
	require.NoError(t, err)
	g.baseURL = srv.URL
	return g
}

var manila = geo.Point{Latitude: 14.5995, Longitude: 120.9842}

func TestGeocodingService_ReverseGeocode(t *testing.T) {
	var calls int32
	g := newTestGeocoder(t, `{"status":"OK","results":[{"formatted_address":"Ermita, Manila"}]}`, &calls)

	address, err := g.ReverseGeocode(context.Background(), manila)
	require.NoError(t, err)
	assert.Equal(t, "Ermita, Manila", address)
}

func TestGeocodingService_ZeroResults(t *testing.T) {
	var calls int32
	g := newTestGeocoder(t, `{"status":"ZERO_RESULTS","results":[]}`, &calls)

	_, err := g.ReverseGeocode(context.Background(), manila)
	assert.ErrorContains(t, err, "ZERO_RESULTS")
}

func TestNewGeocodingService_RequiresKey(t *testing.T) {
	_, err := NewGeocodingService("")
	assert.Error(t, err)
}

func TestCachedGeocoder(t *testing.T) {
	var calls int32
	g := newTestGeocoder(t, `{"status":"OK","results":[{"formatted_address":"Ermita, Manila"}]}`, &calls)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cached := NewCachedGeocoder(g, client)
	for i := 0; i < 3; i++ {
		address, err := cached.ReverseGeocode(context.Background(), manila)
		require.NoError(t, err)
		assert.Equal(t, "Ermita, Manila", address)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists("geocode:14.5995,120.9842"))
}

type failingGeocoder struct{}

func (failingGeocoder) ReverseGeocode(context.Context, geo.Point) (string, error) {
	return "", assert.AnError
}

func TestDescribeFix(t *testing.T) {
	svc := &ShipmentService{}
	assert.Equal(t, "14.5995, 120.9842", svc.describeFix(context.Background(), 14.5995, 120.9842))

	svc.geocoder = failingGeocoder{}
	assert.Equal(t, "14.5995, 120.9842", svc.describeFix(context.Background(), 14.5995, 120.9842))

	var calls int32
	svc.geocoder = newTestGeocoder(t, `{"status":"OK","results":[{"formatted_address":"Ermita, Manila"}]}`, &calls)
	assert.Equal(t, "Ermita, Manila", svc.describeFix(context.Background(), 14.5995, 120.9842))
}
