package types

// Tier is the recommendation tier derived from an occurrence score.
type Tier string

const (
	TierHigh     Tier = "high"
	TierModerate Tier = "moderate"
	TierLow      Tier = "low"
	TierUnlikely Tier = "unlikely"
)

// NotificationKind identifies which template family a notification renders with.
type NotificationKind string

const (
	KindSightingAlert   NotificationKind = "sighting_alert"
	KindPredictionAlert NotificationKind = "prediction_alert"
	KindWelcome         NotificationKind = "welcome"
)

// DeliveryOutcome is the terminal state of a single delivery attempt.
// Every attempted recipient reaches exactly one of these.
type DeliveryOutcome string

const (
	OutcomeDelivered        DeliveryOutcome = "delivered"
	OutcomeFailed           DeliveryOutcome = "failed"
	OutcomeSkippedNoChannel DeliveryOutcome = "skipped_no_channel"
)

// DispatchStatus summarizes the overall outcome of a Dispatch call.
type DispatchStatus string

const (
	// DispatchCompleted means fan-out ran; per-recipient outcomes are in the counts.
	DispatchCompleted DispatchStatus = "completed"

	// DispatchSkippedLowProbability means the prediction gate suppressed the
	// broadcast. Expected and frequent; not an error.
	DispatchSkippedLowProbability DispatchStatus = "skipped_low_probability"
)
