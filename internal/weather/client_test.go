package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainbowatch/internal/external"
	"rainbowatch/internal/types"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func newTestWeatherClient(baseURL string) *Client {
	return NewClient(
		Config{BaseURL: baseURL, APIKey: types.SecretString("wx-key")},
		fixedClock{at: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)},
		external.WithSleepFunc(func(time.Duration) {}),
	)
}

func TestCurrentParsesObservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "36.0687", r.URL.Query().Get("lat"))
		assert.Equal(t, "137.9646", r.URL.Query().Get("lon"))
		w.Write([]byte(`{
			"temperature_c": 20,
			"humidity_percent": 70,
			"pressure_hpa": 1008.5,
			"wind_speed_ms": 3,
			"wind_direction_deg": 180,
			"cloud_cover_percent": 40,
			"visibility_km": 12,
			"precipitation_mm": 0,
			"observed_at": "2026-08-28T11:45:00Z"
		}`))
	}))
	defer srv.Close()

	c := newTestWeatherClient(srv.URL)

	obs, err := c.Current(context.Background(), 36.0687, 137.9646)
	require.NoError(t, err)

	assert.Equal(t, 20.0, obs.TemperatureC)
	assert.Equal(t, 1008.5, obs.PressureHPa)
	assert.Equal(t, 12.0, obs.VisibilityKm)
	assert.Equal(t, time.Date(2026, 8, 28, 11, 45, 0, 0, time.UTC), obs.ObservedAt)

	require.NotNil(t, obs.Origin)
	assert.Equal(t, 36.0687, obs.Origin.Lat)
	assert.Equal(t, 137.9646, obs.Origin.Lon)
}

// Absent pressure and visibility fall back to standard-atmosphere defaults;
// a missing timestamp falls back to the clock.
func TestCurrentAppliesDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"temperature_c": 18,
			"humidity_percent": 55,
			"wind_speed_ms": 2,
			"cloud_cover_percent": 30
		}`))
	}))
	defer srv.Close()

	c := newTestWeatherClient(srv.URL)

	obs, err := c.Current(context.Background(), 36.0687, 137.9646)
	require.NoError(t, err)

	assert.Equal(t, DefaultPressureHPa, obs.PressureHPa)
	assert.Equal(t, DefaultVisibilityKm, obs.VisibilityKm)
	assert.Equal(t, time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC), obs.ObservedAt)
}

func TestCurrentRejectsInvalidCoordinates(t *testing.T) {
	c := newTestWeatherClient("http://127.0.0.1:0")

	_, err := c.Current(context.Background(), 91, 0)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestCurrentRejectsOutOfRangePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"temperature_c": 200, "humidity_percent": 50}`))
	}))
	defer srv.Close()

	c := newTestWeatherClient(srv.URL)

	_, err := c.Current(context.Background(), 36.0687, 137.9646)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
}

func TestCurrentMapsOutageToUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestWeatherClient(srv.URL)

	_, err := c.Current(context.Background(), 36.0687, 137.9646)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
}
