// Package scoring implements the occurrence-scoring engine: a deterministic,
// side-effect-free mapping from a weather observation to a 0-100 probability
// score and a recommendation tier.
//
// The scorer is weighted-rule based rather than a joint probability model.
// Each rule contributes an independent band of points, so every score can be
// explained to a user band-by-band, and a single sensor jitter can never
// move the total by more than one band's worth of points.
package scoring

import (
	"fmt"
	"strings"

	"rainbowatch/internal/types"
)

// Scorer maps a weather observation to a score result. RuleScorer is the
// authoritative implementation; a learned-model variant may be plugged in
// behind the same interface.
type Scorer interface {
	Score(obs types.WeatherObservation) (*types.ScoreResult, error)
}

// Tier boundaries. Each threshold is inclusive.
const (
	TierHighMin     = 70
	TierModerateMin = 50
	TierLowMin      = 30
)

// Compile-time assertion that RuleScorer implements Scorer.
var _ Scorer = (*RuleScorer)(nil)

// RuleScorer scores observations with fixed weighted rules. Safe for
// concurrent use; it holds no mutable state.
type RuleScorer struct {
	clock types.Clock
}

// NewRuleScorer creates a RuleScorer. A nil clock defaults to RealClock.
func NewRuleScorer(clock types.Clock) *RuleScorer {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RuleScorer{clock: clock}
}

// Score validates the observation and computes its occurrence score.
// Recomputing from an identical observation yields an identical probability,
// tier, and band breakdown.
func (s *RuleScorer) Score(obs types.WeatherObservation) (*types.ScoreResult, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	bands := scoreBands(obs)
	probability := bands.Sum()
	if probability > 100 {
		probability = 100
	}

	tier := TierForProbability(probability)

	return &types.ScoreResult{
		Probability:       probability,
		Tier:              tier,
		Bands:             bands,
		Recommendation:    recommendationFor(tier),
		ConditionsSummary: SummarizeConditions(obs),
		Observation:       obs,
		ComputedAt:        s.clock.Now(),
	}, nil
}

// scoreBands applies the weighted rules. All interval boundaries are
// inclusive at the listed values.
func scoreBands(obs types.WeatherObservation) types.ScoreBands {
	return types.ScoreBands{
		Temperature: temperatureBand(obs.TemperatureC),
		Humidity:    humidityBand(obs.HumidityPct),
		CloudCover:  cloudCoverBand(obs.CloudCoverPct),
		Wind:        windBand(obs.WindSpeedMS),
		Visibility:  visibilityBand(obs.VisibilityKm),
	}
}

func temperatureBand(c float64) int {
	switch {
	case c >= 15 && c <= 25:
		return 20
	case c >= 10 && c <= 30:
		return 10
	default:
		return 0
	}
}

func humidityBand(pct float64) int {
	switch {
	case pct >= 60:
		return 25
	case pct >= 40:
		return 15
	default:
		return 0
	}
}

func cloudCoverBand(pct float64) int {
	switch {
	case pct >= 20 && pct <= 60:
		return 30
	case pct >= 10 && pct <= 80:
		return 20
	default:
		return 0
	}
}

func windBand(ms float64) int {
	switch {
	case ms <= 5:
		return 15
	case ms <= 10:
		return 10
	default:
		return 0
	}
}

func visibilityBand(km float64) int {
	switch {
	case km >= 10:
		return 10
	case km >= 5:
		return 5
	default:
		return 0
	}
}

// TierForProbability maps a capped score to its recommendation tier.
func TierForProbability(p int) types.Tier {
	switch {
	case p >= TierHighMin:
		return types.TierHigh
	case p >= TierModerateMin:
		return types.TierModerate
	case p >= TierLowMin:
		return types.TierLow
	default:
		return types.TierUnlikely
	}
}

// recommendationFor returns the user-facing recommendation line for a tier.
func recommendationFor(t types.Tier) string {
	switch t {
	case types.TierHigh:
		return "Excellent chance of a rainbow. Get your camera ready and head outside."
	case types.TierModerate:
		return "Good chance of a rainbow. Keep an eye on the sky."
	case types.TierLow:
		return "Low chance of a rainbow, but still possible under the right conditions."
	default:
		return "Very low chance of a rainbow with current conditions."
	}
}

// SummarizeConditions renders a short human-readable description of the
// observation, used in score responses and prediction alert bodies.
func SummarizeConditions(obs types.WeatherObservation) string {
	var parts []string

	switch {
	case obs.TemperatureC < 10:
		parts = append(parts, "cold")
	case obs.TemperatureC > 25:
		parts = append(parts, "warm")
	default:
		parts = append(parts, "mild")
	}

	switch {
	case obs.HumidityPct > 80:
		parts = append(parts, "very humid")
	case obs.HumidityPct > 60:
		parts = append(parts, "humid")
	default:
		parts = append(parts, "dry")
	}

	switch {
	case obs.PrecipitationMM > 5:
		parts = append(parts, "heavy rain")
	case obs.PrecipitationMM > 0:
		parts = append(parts, "light rain")
	}

	switch {
	case obs.CloudCoverPct > 75:
		parts = append(parts, "overcast")
	case obs.CloudCoverPct > 25:
		parts = append(parts, "partly cloudy")
	default:
		parts = append(parts, "clear")
	}

	return strings.Join(parts, ", ")
}

// ScoreBatch scores each observation independently, isolating per-item
// failures: a failed item yields a nil result and an error at its index.
// Returns a validation AppError when the batch exceeds MaxScoreBatch.
func ScoreBatch(s Scorer, observations []types.WeatherObservation) ([]*types.ScoreResult, []error, error) {
	if len(observations) > types.MaxScoreBatch {
		return nil, nil, types.NewAppError(types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size %d exceeds maximum of %d", len(observations), types.MaxScoreBatch), nil)
	}

	results := make([]*types.ScoreResult, len(observations))
	errs := make([]error, len(observations))
	for i, obs := range observations {
		results[i], errs[i] = s.Score(obs)
	}
	return results, errs, nil
}
