// Package weather implements the HTTP observation source. It fetches current
// surface conditions for a coordinate and normalizes them into a
// WeatherObservation, filling standard-atmosphere defaults for fields the
// provider omits.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"rainbowatch/internal/external"
	"rainbowatch/internal/types"
)

// Defaults applied when the provider payload omits a field. Pressure assumes
// a standard atmosphere; visibility assumes clear air.
const (
	DefaultPressureHPa  = 1013.25
	DefaultVisibilityKm = 10.0
)

// Compile-time assertion that Client implements types.ObservationSource.
var _ types.ObservationSource = (*Client)(nil)

// Config holds the observation provider endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  types.SecretString
}

// Client fetches current observations over the provider's HTTP API.
type Client struct {
	base    *external.BaseClient
	baseURL string
	apiKey  types.SecretString
	clock   types.Clock
}

// NewClient creates a weather Client. clock may be nil for the real clock.
func NewClient(cfg Config, clock types.Clock, opts ...external.BaseClientOption) *Client {
	if clock == nil {
		clock = types.RealClock{}
	}
	base := external.NewBaseClient(
		&http.Client{Timeout: 10 * time.Second},
		"weather-provider",
		external.DefaultRetryPolicy(),
		"rainbowatch/1.0",
		types.ErrCodeUpstreamWeather,
		opts...,
	)
	return &Client{
		base:    base,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		clock:   clock,
	}
}

// currentResponse is the provider wire format. Pointer fields distinguish
// "absent" from "zero" so defaults only apply to truly missing values.
type currentResponse struct {
	TemperatureC     float64  `json:"temperature_c"`
	HumidityPct      float64  `json:"humidity_percent"`
	PressureHPa      *float64 `json:"pressure_hpa"`
	WindSpeedMS      float64  `json:"wind_speed_ms"`
	WindDirectionDeg float64  `json:"wind_direction_deg"`
	CloudCoverPct    float64  `json:"cloud_cover_percent"`
	VisibilityKm     *float64 `json:"visibility_km"`
	PrecipitationMM  float64  `json:"precipitation_mm"`
	ObservedAt       *string  `json:"observed_at"`
}

// Current fetches the latest observation for the coordinate. The returned
// observation always carries an Origin set to the query point and passes
// WeatherObservation.Validate.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*types.WeatherObservation, error) {
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", lat))
	q.Set("lon", fmt.Sprintf("%.4f", lon))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/current?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}
	if key := c.apiKey.Reveal(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather provider returned status %d", resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode},
		)
	}

	var wire currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode weather provider response", err)
	}

	obs := &types.WeatherObservation{
		TemperatureC:     wire.TemperatureC,
		HumidityPct:      wire.HumidityPct,
		PressureHPa:      DefaultPressureHPa,
		WindSpeedMS:      wire.WindSpeedMS,
		WindDirectionDeg: wire.WindDirectionDeg,
		CloudCoverPct:    wire.CloudCoverPct,
		VisibilityKm:     DefaultVisibilityKm,
		PrecipitationMM:  wire.PrecipitationMM,
		ObservedAt:       c.clock.Now(),
		Origin:           &types.Location{Lat: lat, Lon: lon},
	}
	if wire.PressureHPa != nil {
		obs.PressureHPa = *wire.PressureHPa
	}
	if wire.VisibilityKm != nil {
		obs.VisibilityKm = *wire.VisibilityKm
	}
	if wire.ObservedAt != nil {
		if t, parseErr := time.Parse(time.RFC3339, *wire.ObservedAt); parseErr == nil {
			obs.ObservedAt = t.UTC()
		}
	}

	if err := obs.Validate(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "weather provider returned out-of-range observation", err)
	}

	return obs, nil
}
