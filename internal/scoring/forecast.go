package scoring

import (
	"fmt"
	"time"

	"rainbowatch/internal/types"
)

// Forecast horizon bounds.
const (
	DefaultForecastHours = 24
	MaxForecastHours     = 168

	// peakWindowMin is the minimum probability for an hour to belong to a
	// peak window; favorableMin is the looser bar used by the summary.
	peakWindowMin = 50
	favorableMin  = 40
)

// ForecastPoint is one projected hour of the forecast series.
type ForecastPoint struct {
	Hour        int              `json:"hour"`
	At          time.Time        `json:"at"`
	Probability int              `json:"probability"`
	Tier        types.Tier       `json:"tier"`
	Bands       types.ScoreBands `json:"bands"`
}

// PeakWindow is a contiguous run of forecast hours whose probability stays
// at or above peakWindowMin.
type PeakWindow struct {
	StartHour       int     `json:"start_hour"`
	EndHour         int     `json:"end_hour"`
	DurationHours   int     `json:"duration_hours"`
	MaxProbability  int     `json:"max_probability"`
	MeanProbability float64 `json:"mean_probability"`
}

// ForecastSummary aggregates the series for callers that only want the
// headline numbers.
type ForecastSummary struct {
	MaxProbability  int     `json:"max_probability"`
	MeanProbability float64 `json:"mean_probability"`
	PeakHour        int     `json:"peak_hour"`
	FavorableHours  int     `json:"favorable_hours"`
	TotalHours      int     `json:"total_hours"`
}

// Forecast is an hour-stepped projection of occurrence probability from a
// single current observation.
type Forecast struct {
	Points      []ForecastPoint `json:"points"`
	PeakWindows []PeakWindow    `json:"peak_windows"`
	Summary     ForecastSummary `json:"summary"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ForecastSeries projects the observation forward hour by hour, scores each
// projected hour, and reports peak probability windows. The projection is a
// deterministic diurnal heuristic, not a weather model: temperature and
// humidity swing with the hour of day and every projected value is clamped
// into its valid range, so identical inputs always yield identical series.
// A nil clock defaults to RealClock.
func ForecastSeries(s Scorer, obs types.WeatherObservation, hours int, clock types.Clock) (*Forecast, error) {
	if hours < 1 || hours > MaxForecastHours {
		return nil, types.NewAppError(types.ErrCodeValidationForecastHours,
			fmt.Sprintf("forecast hours %d outside [1, %d]", hours, MaxForecastHours), nil)
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = types.RealClock{}
	}

	start := obs.ObservedAt
	points := make([]ForecastPoint, 0, hours)
	for hour := 0; hour < hours; hour++ {
		at := start.Add(time.Duration(hour) * time.Hour)
		projected := projectObservation(obs, at)

		result, err := s.Score(projected)
		if err != nil {
			return nil, err
		}

		points = append(points, ForecastPoint{
			Hour:        hour,
			At:          at,
			Probability: result.Probability,
			Tier:        result.Tier,
			Bands:       result.Bands,
		})
	}

	return &Forecast{
		Points:      points,
		PeakWindows: peakWindows(points),
		Summary:     summarize(points),
		GeneratedAt: clock.Now(),
	}, nil
}

// projectObservation applies the diurnal heuristic for the projected hour of
// day: cooler and more humid overnight, warmer and drier through midday.
func projectObservation(obs types.WeatherObservation, at time.Time) types.WeatherObservation {
	projected := obs
	projected.ObservedAt = at

	hour := at.Hour()
	switch {
	case hour <= 6:
		projected.TemperatureC = obs.TemperatureC * 0.8
		projected.HumidityPct = obs.HumidityPct * 1.2
	case hour >= 12 && hour <= 16:
		projected.TemperatureC = obs.TemperatureC * 1.1
		projected.HumidityPct = obs.HumidityPct * 0.9
	}

	projected.TemperatureC = clamp(projected.TemperatureC, "temperature_c")
	projected.HumidityPct = clamp(projected.HumidityPct, "humidity_percent")
	return projected
}

// clamp bounds a projected value to its StandardVariables range. Projection
// may only ever clamp; real observations are validated, never clamped.
func clamp(v float64, variable string) float64 {
	r := types.StandardVariables[variable].Range
	if v < r[0] {
		return r[0]
	}
	if v > r[1] {
		return r[1]
	}
	return v
}

// peakWindows collapses the series into contiguous runs at or above
// peakWindowMin.
func peakWindows(points []ForecastPoint) []PeakWindow {
	var windows []PeakWindow
	var current *PeakWindow
	var sum int

	flush := func() {
		if current == nil {
			return
		}
		current.MeanProbability = float64(sum) / float64(current.DurationHours)
		windows = append(windows, *current)
		current = nil
		sum = 0
	}

	for _, p := range points {
		if p.Probability < peakWindowMin {
			flush()
			continue
		}
		if current == nil {
			current = &PeakWindow{StartHour: p.Hour, EndHour: p.Hour, MaxProbability: p.Probability, DurationHours: 1}
			sum = p.Probability
			continue
		}
		current.EndHour = p.Hour
		current.DurationHours++
		sum += p.Probability
		if p.Probability > current.MaxProbability {
			current.MaxProbability = p.Probability
		}
	}
	flush()
	return windows
}

// summarize computes the headline numbers over the full series.
func summarize(points []ForecastPoint) ForecastSummary {
	s := ForecastSummary{TotalHours: len(points)}
	if len(points) == 0 {
		return s
	}

	var sum int
	for _, p := range points {
		sum += p.Probability
		if p.Probability > s.MaxProbability {
			s.MaxProbability = p.Probability
			s.PeakHour = p.Hour
		}
		if p.Probability >= favorableMin {
			s.FavorableHours++
		}
	}
	s.MeanProbability = float64(sum) / float64(len(points))
	return s
}
