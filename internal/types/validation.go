package types

import "fmt"

// Validation constraint constants.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0

	// MaxScoreBatch caps batch scoring requests.
	MaxScoreBatch = 100
)

// VariableMetadata defines the canonical rules for a weather variable.
type VariableMetadata struct {
	ID          string     `json:"id"`
	Unit        string     `json:"unit"`
	Range       [2]float64 `json:"valid_range"`
	Description string     `json:"description"`
}

// StandardVariables defines the authoritative constraints for observation
// fields. All components MUST validate against these ranges.
var StandardVariables = map[string]VariableMetadata{
	"temperature_c":       {ID: "temperature_c", Unit: "celsius", Range: [2]float64{-60, 60}, Description: "Air temperature at 2m above ground level"},
	"humidity_percent":    {ID: "humidity_percent", Unit: "percent", Range: [2]float64{0, 100}, Description: "Relative humidity"},
	"pressure_hpa":        {ID: "pressure_hpa", Unit: "hPa", Range: [2]float64{850, 1100}, Description: "Barometric pressure at station level"},
	"wind_speed_ms":       {ID: "wind_speed_ms", Unit: "m/s", Range: [2]float64{0, 120}, Description: "Wind speed at 10m above ground level"},
	"wind_direction_deg":  {ID: "wind_direction_deg", Unit: "degrees", Range: [2]float64{0, 360}, Description: "Wind direction, meteorological convention"},
	"cloud_cover_percent": {ID: "cloud_cover_percent", Unit: "percent", Range: [2]float64{0, 100}, Description: "Total cloud cover"},
	"visibility_km":       {ID: "visibility_km", Unit: "km", Range: [2]float64{0, 100}, Description: "Horizontal visibility"},
	"precipitation_mm":    {ID: "precipitation_mm", Unit: "mm", Range: [2]float64{0, 500}, Description: "Accumulated precipitation"},
}

// ValidateCoordinates checks latitude and longitude bounds. Out-of-range
// values are rejected, never clamped.
func ValidateCoordinates(lat, lon float64) error {
	if lat < MinLat || lat > MaxLat {
		return NewAppError(ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %.6f outside [%.0f, %.0f]", lat, MinLat, MaxLat), nil)
	}
	if lon < MinLon || lon > MaxLon {
		return NewAppError(ErrCodeValidationInvalidLon,
			fmt.Sprintf("longitude %.6f outside [%.0f, %.0f]", lon, MinLon, MaxLon), nil)
	}
	return nil
}

// ValidateObservation checks every observation field against StandardVariables
// and, when an origin is present, validates its coordinates.
func (o *WeatherObservation) Validate() error {
	fields := []struct {
		variable string
		value    float64
	}{
		{"temperature_c", o.TemperatureC},
		{"humidity_percent", o.HumidityPct},
		{"pressure_hpa", o.PressureHPa},
		{"wind_speed_ms", o.WindSpeedMS},
		{"wind_direction_deg", o.WindDirectionDeg},
		{"cloud_cover_percent", o.CloudCoverPct},
		{"visibility_km", o.VisibilityKm},
		{"precipitation_mm", o.PrecipitationMM},
	}
	for _, f := range fields {
		meta := StandardVariables[f.variable]
		if f.value < meta.Range[0] || f.value > meta.Range[1] {
			return NewAppErrorWithDetails(ErrCodeValidationInvalidObservation,
				fmt.Sprintf("%s %.2f outside valid range [%.2f, %.2f]",
					f.variable, f.value, meta.Range[0], meta.Range[1]),
				nil,
				map[string]any{"variable": f.variable, "value": f.value},
			)
		}
	}
	if o.ObservedAt.IsZero() {
		return NewAppError(ErrCodeValidationMissingField, "observed_at is required", nil)
	}
	if o.Origin != nil {
		if err := ValidateCoordinates(o.Origin.Lat, o.Origin.Lon); err != nil {
			return err
		}
	}
	return nil
}
