package config

import (
	"fmt"
	"strconv"
	"strings"

	"rainbowatch/internal/types"
)

// ParseSites parses the semicolon-separated "lat,lon" site list into
// coordinates, validating each pair.
func (w WeatherConfig) ParseSites() ([]types.Location, error) {
	var sites []types.Location
	for _, raw := range strings.Split(w.Sites, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: malformed site %q (want \"lat,lon\")", raw)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("config: site %q: %w", raw, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("config: site %q: %w", raw, err)
		}
		if err := types.ValidateCoordinates(lat, lon); err != nil {
			return nil, fmt.Errorf("config: site %q: %w", raw, err)
		}
		sites = append(sites, types.Location{Lat: lat, Lon: lon})
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("config: WEATHER_SITES is empty")
	}
	return sites, nil
}
