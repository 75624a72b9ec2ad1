package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainbowatch/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func baseObservation() types.WeatherObservation {
	return types.WeatherObservation{
		TemperatureC:     20,
		HumidityPct:      70,
		PressureHPa:      1013,
		WindSpeedMS:      3,
		WindDirectionDeg: 200,
		CloudCoverPct:    40,
		VisibilityKm:     12,
		PrecipitationMM:  0,
		ObservedAt:       time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
	}
}

// TestScorePerfectConditions reproduces the reference scenario: every band
// fires at full value and the total reaches exactly 100.
func TestScorePerfectConditions(t *testing.T) {
	s := NewRuleScorer(fixedClock{t: time.Date(2026, 6, 1, 15, 5, 0, 0, time.UTC)})

	res, err := s.Score(baseObservation())
	require.NoError(t, err)

	assert.Equal(t, 100, res.Probability)
	assert.Equal(t, types.TierHigh, res.Tier)
	assert.Equal(t, types.ScoreBands{
		Temperature: 20,
		Humidity:    25,
		CloudCover:  30,
		Wind:        15,
		Visibility:  10,
	}, res.Bands)
}

// TestScoreDeterministic verifies the pure-function contract: two calls with
// an identical observation produce identical results.
func TestScoreDeterministic(t *testing.T) {
	clock := fixedClock{t: time.Date(2026, 6, 1, 15, 5, 0, 0, time.UTC)}
	s := NewRuleScorer(clock)
	obs := baseObservation()

	first, err := s.Score(obs)
	require.NoError(t, err)
	second, err := s.Score(obs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestHumidityBoundaryInclusive pins the inclusive boundary at 60%:
// exactly 60 earns the full band, 59.9 does not.
func TestHumidityBoundaryInclusive(t *testing.T) {
	s := NewRuleScorer(nil)

	at := baseObservation()
	at.HumidityPct = 60
	res, err := s.Score(at)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Bands.Humidity)

	below := baseObservation()
	below.HumidityPct = 59.9
	res, err = s.Score(below)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Bands.Humidity)
}

func TestBandBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*types.WeatherObservation)
		check  func(t *testing.T, b types.ScoreBands)
	}{
		{"temperature 15 inclusive", func(o *types.WeatherObservation) { o.TemperatureC = 15 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 20, b.Temperature) }},
		{"temperature 25 inclusive", func(o *types.WeatherObservation) { o.TemperatureC = 25 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 20, b.Temperature) }},
		{"temperature 14.9 outer band", func(o *types.WeatherObservation) { o.TemperatureC = 14.9 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 10, b.Temperature) }},
		{"temperature 31 no points", func(o *types.WeatherObservation) { o.TemperatureC = 31 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 0, b.Temperature) }},
		{"cloud 20 inclusive", func(o *types.WeatherObservation) { o.CloudCoverPct = 20 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 30, b.CloudCover) }},
		{"cloud 60 inclusive", func(o *types.WeatherObservation) { o.CloudCoverPct = 60 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 30, b.CloudCover) }},
		{"cloud 80 outer band", func(o *types.WeatherObservation) { o.CloudCoverPct = 80 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 20, b.CloudCover) }},
		{"cloud 90 no points", func(o *types.WeatherObservation) { o.CloudCoverPct = 90 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 0, b.CloudCover) }},
		{"wind 5 inclusive", func(o *types.WeatherObservation) { o.WindSpeedMS = 5 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 15, b.Wind) }},
		{"wind 10 outer band", func(o *types.WeatherObservation) { o.WindSpeedMS = 10 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 10, b.Wind) }},
		{"wind 10.1 no points", func(o *types.WeatherObservation) { o.WindSpeedMS = 10.1 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 0, b.Wind) }},
		{"visibility 10 inclusive", func(o *types.WeatherObservation) { o.VisibilityKm = 10 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 10, b.Visibility) }},
		{"visibility 5 outer band", func(o *types.WeatherObservation) { o.VisibilityKm = 5 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 5, b.Visibility) }},
		{"visibility 4.9 no points", func(o *types.WeatherObservation) { o.VisibilityKm = 4.9 },
			func(t *testing.T, b types.ScoreBands) { assert.Equal(t, 0, b.Visibility) }},
	}

	s := NewRuleScorer(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := baseObservation()
			tc.mutate(&obs)
			res, err := s.Score(obs)
			require.NoError(t, err)
			tc.check(t, res.Bands)
		})
	}
}

// TestScoreRange sweeps a grid of observations and verifies the score never
// leaves [0, 100] on any path.
func TestScoreRange(t *testing.T) {
	s := NewRuleScorer(nil)

	for temp := -40.0; temp <= 50; temp += 10 {
		for hum := 0.0; hum <= 100; hum += 20 {
			for cloud := 0.0; cloud <= 100; cloud += 20 {
				obs := baseObservation()
				obs.TemperatureC = temp
				obs.HumidityPct = hum
				obs.CloudCoverPct = cloud

				res, err := s.Score(obs)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, res.Probability, 0)
				assert.LessOrEqual(t, res.Probability, 100)
			}
		}
	}
}

func TestTierForProbability(t *testing.T) {
	cases := []struct {
		p    int
		want types.Tier
	}{
		{100, types.TierHigh},
		{70, types.TierHigh},
		{69, types.TierModerate},
		{50, types.TierModerate},
		{49, types.TierLow},
		{30, types.TierLow},
		{29, types.TierUnlikely},
		{0, types.TierUnlikely},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TierForProbability(tc.p), "probability %d", tc.p)
	}
}

func TestScoreRejectsInvalidObservation(t *testing.T) {
	s := NewRuleScorer(nil)

	obs := baseObservation()
	obs.HumidityPct = 140
	_, err := s.Score(obs)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestSummarizeConditions(t *testing.T) {
	obs := baseObservation()
	obs.HumidityPct = 85
	obs.PrecipitationMM = 1.2
	obs.CloudCoverPct = 50

	assert.Equal(t, "mild, very humid, light rain, partly cloudy", SummarizeConditions(obs))
}

func TestScoreBatchIsolation(t *testing.T) {
	s := NewRuleScorer(nil)

	good := baseObservation()
	bad := baseObservation()
	bad.TemperatureC = 200

	results, errs, err := ScoreBatch(s, []types.WeatherObservation{good, bad, good})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotNil(t, results[0])
	assert.NoError(t, errs[0])
	assert.Nil(t, results[1])
	assert.Error(t, errs[1])
	assert.NotNil(t, results[2])
	assert.NoError(t, errs[2])
}

func TestScoreBatchSizeCap(t *testing.T) {
	s := NewRuleScorer(nil)

	oversized := make([]types.WeatherObservation, types.MaxScoreBatch+1)
	for i := range oversized {
		oversized[i] = baseObservation()
	}

	_, _, err := ScoreBatch(s, oversized)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}
