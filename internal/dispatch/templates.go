package dispatch

import (
	"fmt"

	"rainbowatch/internal/types"
)

// Notification copy lives here so every delivery channel renders the same
// text for the same event. Distances are shown with one decimal so "0.0 km"
// reads as "right here" rather than an error.

func sightingContent(s *types.SightingEvent, distanceKm float64) (title, body string) {
	title = "Rainbow nearby!"
	body = fmt.Sprintf("A rainbow was sighted %.1f km from you.", distanceKm)
	if s.Message != "" {
		body = fmt.Sprintf("%s %q", body, s.Message)
	}
	return title, body
}

func predictionContent(r *types.ScoreResult, distanceKm float64) (title, body string) {
	title = "Rainbow likely soon"
	body = fmt.Sprintf(
		"Conditions near you (%.1f km away) give a %d%% chance of a rainbow. %s",
		distanceKm, r.Probability, r.Recommendation,
	)
	return title, body
}

func welcomeContent() (title, body string) {
	title = "Welcome to rainbowatch"
	body = "You're all set. We'll alert you when a rainbow is sighted or likely near your location."
	return title, body
}
