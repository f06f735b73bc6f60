package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKm(t *testing.T) {
	t.Run("SamePoint", func(t *testing.T) {
		p := Point{Latitude: 14.5995, Longitude: 120.9842}
		assert.Equal(t, 0.0, HaversineKm(p, p))
	})

	t.Run("ManilaShortHop", func(t *testing.T) {
		d := HaversineKm(
			Point{Latitude: 14.5995, Longitude: 120.9842},
			Point{Latitude: 14.6, Longitude: 120.99},
		)
		assert.InDelta(t, 0.63, d, 0.01)
	})

	t.Run("OneDegreeLatitude", func(t *testing.T) {
		d := HaversineKm(Point{Latitude: 0, Longitude: 0}, Point{Latitude: 1, Longitude: 0})
		assert.InDelta(t, 111.19, d, 0.01)
	})

	t.Run("Symmetric", func(t *testing.T) {
		a := Point{Latitude: 37.3469, Longitude: -121.9298}
		b := Point{Latitude: 37.3329, Longitude: -121.8866}
		assert.InDelta(t, HaversineKm(a, b), HaversineKm(b, a), 1e-9)
	})

	t.Run("Antipodes", func(t *testing.T) {
		halfCircumference := math.Pi * EarthRadiusKm
		for x := -89.999; x < 90; x += 0.0871 {
			d := HaversineKm(Point{Latitude: x, Longitude: 0}, Point{Latitude: -x, Longitude: 180})
			require.False(t, math.IsNaN(d), "lat %v", x)
			assert.InDelta(t, halfCircumference, d, 0.01, "lat %v", x)
		}
	})
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.235, 2))
	assert.Equal(t, 0.63, Round(0.6341, 2))
	assert.Equal(t, 2.0, Round(1.999, 2))

	assert.NotPanics(t, func() {
		assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
		assert.True(t, math.IsInf(Round(math.Inf(1), 1), 1))
	})
}

func TestParseLatLng(t *testing.T) {
	t.Run("WithSpace", func(t *testing.T) {
		p, err := ParseLatLng("14.6, 120.99")
		require.NoError(t, err)
		assert.Equal(t, Point{Latitude: 14.6, Longitude: 120.99}, p)
	})

	t.Run("Compact", func(t *testing.T) {
		p, err := ParseLatLng("14.6,120.99")
		require.NoError(t, err)
		assert.Equal(t, 120.99, p.Longitude)
	})

	t.Run("FreeText", func(t *testing.T) {
		_, err := ParseLatLng("Warehouse 3, Pasig")
		assert.Error(t, err)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := ParseLatLng("91, 10")
		assert.Error(t, err)
	})
}

func TestFormatLatLng(t *testing.T) {
	assert.Equal(t, "14.5995, 120.9842", FormatLatLng(14.5995, 120.9842))
	assert.Equal(t, "14.1234568, 120", FormatLatLng(14.123456789, 120))
	assert.Equal(t, "14.6, 120.99", Point{Latitude: 14.6, Longitude: 120.99}.String())
}
