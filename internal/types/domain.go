package types

import (
	"time"
)

// Location represents a geographic coordinate.
type Location struct {
	Lat float64 `json:"lat" db:"lat"`
	Lon float64 `json:"lon" db:"lon"`
}

// WeatherObservation is an immutable snapshot of surface conditions at a
// point in time. Created by the weather-fetch collaborator and consumed
// read-only by the scoring engine.
//
// Fields absent from a provider payload default to the zero value, with two
// exceptions applied by the weather client: pressure defaults to 1013.25 hPa
// and visibility to 10 km (standard-atmosphere / clear-air assumptions).
type WeatherObservation struct {
	TemperatureC     float64   `json:"temperature_c"`
	HumidityPct      float64   `json:"humidity_percent"`
	PressureHPa      float64   `json:"pressure_hpa"`
	WindSpeedMS      float64   `json:"wind_speed_ms"`
	WindDirectionDeg float64   `json:"wind_direction_deg"`
	CloudCoverPct    float64   `json:"cloud_cover_percent"`
	VisibilityKm     float64   `json:"visibility_km"`
	PrecipitationMM  float64   `json:"precipitation_mm"`
	ObservedAt       time.Time `json:"observed_at"`

	// Origin is the coordinate the observation was taken at, when known.
	// Required for prediction broadcasts (it is the fan-out center).
	Origin *Location `json:"origin,omitempty"`
}

// ScoreBands is the per-rule breakdown of an occurrence score. Each band is
// surfaced to users as the "why" behind the total.
type ScoreBands struct {
	Temperature int `json:"temperature"`
	Humidity    int `json:"humidity"`
	CloudCover  int `json:"cloud_cover"`
	Wind        int `json:"wind"`
	Visibility  int `json:"visibility"`
}

// Sum returns the uncapped total of all bands.
func (b ScoreBands) Sum() int {
	return b.Temperature + b.Humidity + b.CloudCover + b.Wind + b.Visibility
}

// ScoreResult is the derived output of the scoring engine. Recomputing from
// an identical observation yields an identical result (pure-function
// contract; required for caching and test reproducibility).
type ScoreResult struct {
	Probability       int                `json:"probability"` // 0-100
	Tier              Tier               `json:"tier"`
	Bands             ScoreBands         `json:"bands"`
	Recommendation    string             `json:"recommendation"`
	ConditionsSummary string             `json:"conditions_summary"`
	Observation       WeatherObservation `json:"observation"`
	ComputedAt        time.Time          `json:"computed_at"`

	// PredictionID is assigned when the result is persisted ("prd_" prefix).
	// Empty for unpersisted results; threaded into NotificationRecord
	// trigger references when present.
	PredictionID string `json:"prediction_id,omitempty"`
}

// AlertKind implements AlertEvent. A score broadcast is a prediction alert.
func (s *ScoreResult) AlertKind() NotificationKind { return KindPredictionAlert }

// UserLocation is the last known position of a user. A new update replaces
// the prior value for that identity; no history is retained.
type UserLocation struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Lat       float64   `json:"lat" db:"lat"`
	Lon       float64   `json:"lon" db:"lon"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// DistanceKm is populated on radius query results only (not stored).
	DistanceKm float64 `json:"distance_km,omitempty" db:"-"`
}

// SightingEvent is an observed rainbow report. Distinct from a ScoreResult:
// a sighting is an observed fact, a score is a forecast.
type SightingEvent struct {
	ID         string    `json:"id" db:"id"`
	ReporterID string    `json:"reporter_id" db:"reporter_id"`
	Lat        float64   `json:"lat" db:"lat"`
	Lon        float64   `json:"lon" db:"lon"`
	Message    string    `json:"message,omitempty" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AlertKind implements AlertEvent.
func (s *SightingEvent) AlertKind() NotificationKind { return KindSightingAlert }

// AlertEvent is a triggering event accepted by the dispatcher: either a
// SightingEvent or a ScoreResult tagged with an origin coordinate.
type AlertEvent interface {
	AlertKind() NotificationKind
}

// NotificationRecord is the append-only audit entry for a single delivery
// attempt. Created exactly once per (recipient, triggering event) at the
// moment of attempted delivery and never mutated afterward; a redelivery
// creates a new record.
type NotificationRecord struct {
	ID            string           `json:"id" db:"id"`
	RecipientID   string           `json:"recipient_id" db:"recipient_id"`
	TriggerRef    *string          `json:"trigger_ref,omitempty" db:"trigger_ref"`
	Kind          NotificationKind `json:"kind" db:"kind"`
	Title         string           `json:"title" db:"title"`
	Body          string           `json:"body" db:"body"`
	Outcome       DeliveryOutcome  `json:"outcome" db:"outcome"`
	FailureReason string           `json:"failure_reason,omitempty" db:"failure_reason"`
	SentAt        time.Time        `json:"sent_at" db:"sent_at"`
}

// DispatchReport is the aggregate result of a Dispatch call. It is returned
// only once every recipient has reached a terminal outcome; callers never
// see a partially-filled report.
type DispatchReport struct {
	Status    DispatchStatus `json:"status"`
	Delivered int            `json:"delivered"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	RecordIDs []string       `json:"record_ids"`
}

// PushResult is the opaque provider acknowledgement for a sent message.
type PushResult struct {
	ProviderMessageID string `json:"provider_message_id"`
}

// PredictionStats aggregates persisted prediction results over a period.
type PredictionStats struct {
	Since           time.Time `json:"since"`
	Total           int       `json:"total"`
	MeanProbability float64   `json:"mean_probability"`
	HighTierCount   int       `json:"high_tier_count"`
	LowTierCount    int       `json:"low_tier_count"`
}
