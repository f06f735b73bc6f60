package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"logisync-backend/internal/geo"
	"logisync-backend/internal/logger"
)

const (
	googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"
	geocodeCacheTTL  = 24 * time.Hour
	geocodeKeyPrefix = "geocode:"
	// Status locations are autofilled inline with the request, so lookups must be quick
	geocodeTimeout = 2 * time.Second
)

// Geocoder turns a GPS fix into a street address for tracking history
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}

// GoogleGeocodeResponse represents the Google Maps Geocoding API response
type GoogleGeocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"`
}

// GeocodingService does reverse geocoding using the Google Maps API
type GeocodingService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGeocodingService creates a new geocoding service
func NewGeocodingService(apiKey string) (*GeocodingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is required for geocoding")
	}

	return &GeocodingService{
		apiKey:  apiKey,
		baseURL: googleGeocodeURL,
		client:  &http.Client{Timeout: geocodeTimeout},
	}, nil
}

// ReverseGeocode converts coordinates to a formatted address
func (s *GeocodingService) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	params := url.Values{}
	params.Add("latlng", fmt.Sprintf("%f,%f", p.Latitude, p.Longitude))
	params.Add("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status code %d", resp.StatusCode)
	}

	var result GoogleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Status != "OK" {
		return "", fmt.Errorf("geocoding API returned status: %s", result.Status)
	}
	if len(result.Results) == 0 {
		return "", fmt.Errorf("no results found")
	}

	return result.Results[0].FormattedAddress, nil
}

// CachedGeocoder remembers addresses in Redis, keyed by the fix rounded to ~11 m
type CachedGeocoder struct {
	next   Geocoder
	client *redis.Client
}

// NewCachedGeocoder wraps next with a Redis cache
func NewCachedGeocoder(next Geocoder, client *redis.Client) *CachedGeocoder {
	return &CachedGeocoder{next: next, client: client}
}

func geocodeKey(p geo.Point) string {
	return fmt.Sprintf("%s%.4f,%.4f", geocodeKeyPrefix, geo.Round(p.Latitude, 4), geo.Round(p.Longitude, 4))
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	key := geocodeKey(p)

	address, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return address, nil
	}
	if !errors.Is(err, redis.Nil) {
		logger.Get().Debug("Geocode cache read failed", zap.Error(err))
	}

	address, err = c.next.ReverseGeocode(ctx, p)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, address, geocodeCacheTTL).Err(); err != nil {
		logger.Get().Debug("Geocode cache write failed", zap.Error(err))
	}
	return address, nil
}

// describeFix renders the session's last fix, preferring a street address when a geocoder is set
func (s *ShipmentService) describeFix(ctx context.Context, lat, lng float64) string {
	fallback := geo.FormatLatLng(lat, lng)
	if s.geocoder == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	address, err := s.geocoder.ReverseGeocode(ctx, geo.Point{Latitude: lat, Longitude: lng})
	if err != nil || address == "" {
		logger.Get().Debug("Reverse geocoding failed, using coordinates",
			zap.String("fix", fallback), zap.Error(err))
		return fallback
	}
	return address
}
