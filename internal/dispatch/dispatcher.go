// Package dispatch implements the alert fan-out: given a triggering event
// (an observed sighting or a high-probability score), find every user within
// the event's alert radius and attempt a push delivery to each, recording
// exactly one notification record per attempted recipient.
//
// Delivery failures are per-recipient data, never call-level errors; the only
// fatal failure is the location index itself being unavailable, because then
// the recipient set is unknowable.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rainbowatch/internal/cache"
	"rainbowatch/internal/types"
)

// Config holds the fan-out parameters, typically sourced from
// config.DispatchConfig.
type Config struct {
	SightingRadiusKm     float64
	PredictionRadiusKm   float64
	ProbabilityThreshold int
	Concurrency          int
	DeliveryTimeout      time.Duration
}

// Recorder receives dispatch observations. Satisfied by
// observability.Metrics; nil disables recording.
type Recorder interface {
	RecordDispatchRun(status string)
	RecordDelivery(outcome string)
	ObserveFanout(seconds float64, recipients int)
}

// Dispatcher coordinates radius lookup, per-recipient delivery, and the
// notification audit log.
type Dispatcher struct {
	geo      types.GeoIndex
	resolver types.ChannelResolver
	sender   types.PushSender
	store    types.NotificationStore
	cache    types.CacheInvalidator
	recorder Recorder
	logger   types.Logger
	clock    types.Clock
	cfg      Config
}

// NewDispatcher creates a Dispatcher. cache, recorder, and logger may be nil;
// a nil clock means real time.
func NewDispatcher(
	geo types.GeoIndex,
	resolver types.ChannelResolver,
	sender types.PushSender,
	store types.NotificationStore,
	cacheInv types.CacheInvalidator,
	recorder Recorder,
	logger types.Logger,
	clock types.Clock,
	cfg Config,
) *Dispatcher {
	if clock == nil {
		clock = types.RealClock{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 3 * time.Second
	}
	return &Dispatcher{
		geo:      geo,
		resolver: resolver,
		sender:   sender,
		store:    store,
		cache:    cacheInv,
		recorder: recorder,
		logger:   logger,
		clock:    clock,
		cfg:      cfg,
	}
}

// NewNotificationID returns a fresh prefixed notification identifier.
func NewNotificationID() string {
	return "ntf_" + uuid.NewString()
}

// fanoutPlan is the resolved shape of an event before delivery starts.
type fanoutPlan struct {
	kind       types.NotificationKind
	lat, lon   float64
	radiusKm   float64
	excludeID  string
	triggerRef *string
	content    func(distanceKm float64) (title, body string)
}

// Dispatch fans an event out to every user within its alert radius. The
// returned report is complete: every queried recipient has reached a terminal
// outcome and has a persisted notification record by the time it is returned.
//
// A below-threshold prediction is suppressed before any recipient lookup and
// reported as skipped_low_probability. A location index failure is the one
// fatal error; everything downstream degrades per recipient.
func (d *Dispatcher) Dispatch(ctx context.Context, event types.AlertEvent) (*types.DispatchReport, error) {
	plan, err := d.plan(event)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		// Prediction below the broadcast threshold. Zero recipients queried.
		if d.recorder != nil {
			d.recorder.RecordDispatchRun(string(types.DispatchSkippedLowProbability))
		}
		return &types.DispatchReport{Status: types.DispatchSkippedLowProbability}, nil
	}

	started := d.clock.Now()

	recipients, err := d.geo.QueryWithinRadius(ctx, plan.lat, plan.lon, plan.radiusKm, plan.excludeID)
	if err != nil {
		return nil, err
	}

	records := d.deliverAll(ctx, plan, recipients)

	report := &types.DispatchReport{
		Status:    types.DispatchCompleted,
		RecordIDs: make([]string, 0, len(records)),
	}
	for _, rec := range records {
		if appendErr := d.store.Append(ctx, rec); appendErr != nil && d.logger != nil {
			d.logger.Error("failed to persist notification record",
				"record_id", rec.ID,
				"recipient_id", rec.RecipientID,
				"error", appendErr.Error(),
			)
		}
		report.RecordIDs = append(report.RecordIDs, rec.ID)

		switch rec.Outcome {
		case types.OutcomeDelivered:
			report.Delivered++
		case types.OutcomeFailed:
			report.Failed++
		case types.OutcomeSkippedNoChannel:
			report.Skipped++
		}
		if d.recorder != nil {
			d.recorder.RecordDelivery(string(rec.Outcome))
		}
	}

	// Delivered notifications change what nearby/prediction reads should
	// return, so both cached read paths are invalidated after every fan-out.
	if d.cache != nil {
		d.cache.InvalidatePrefix(ctx, cache.PrefixNearbySightings)
		d.cache.InvalidatePrefix(ctx, cache.PrefixPredictions)
	}

	if d.recorder != nil {
		d.recorder.RecordDispatchRun(string(types.DispatchCompleted))
		d.recorder.ObserveFanout(d.clock.Now().Sub(started).Seconds(), len(recipients))
	}
	if d.logger != nil {
		d.logger.Info("dispatch completed",
			"kind", string(plan.kind),
			"recipients", len(recipients),
			"delivered", report.Delivered,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}

	return report, nil
}

// plan resolves an event into fan-out parameters. A nil plan with nil error
// means the event is suppressed (prediction below threshold).
func (d *Dispatcher) plan(event types.AlertEvent) (*fanoutPlan, error) {
	switch e := event.(type) {
	case *types.SightingEvent:
		if err := types.ValidateCoordinates(e.Lat, e.Lon); err != nil {
			return nil, err
		}
		ref := e.ID
		return &fanoutPlan{
			kind:      types.KindSightingAlert,
			lat:       e.Lat,
			lon:       e.Lon,
			radiusKm:  d.cfg.SightingRadiusKm,
			excludeID: e.ReporterID,
			triggerRef: func() *string {
				if ref == "" {
					return nil
				}
				return &ref
			}(),
			content: func(distanceKm float64) (string, string) {
				return sightingContent(e, distanceKm)
			},
		}, nil

	case *types.ScoreResult:
		if e.Probability < d.cfg.ProbabilityThreshold {
			return nil, nil
		}
		if e.Observation.Origin == nil {
			return nil, types.NewAppError(
				types.ErrCodeValidationMissingOrigin,
				"prediction broadcast requires an observation origin",
				nil,
			)
		}
		if err := types.ValidateCoordinates(e.Observation.Origin.Lat, e.Observation.Origin.Lon); err != nil {
			return nil, err
		}
		ref := e.PredictionID
		return &fanoutPlan{
			kind:     types.KindPredictionAlert,
			lat:      e.Observation.Origin.Lat,
			lon:      e.Observation.Origin.Lon,
			radiusKm: d.cfg.PredictionRadiusKm,
			triggerRef: func() *string {
				if ref == "" {
					return nil
				}
				return &ref
			}(),
			content: func(distanceKm float64) (string, string) {
				return predictionContent(e, distanceKm)
			},
		}, nil

	default:
		return nil, types.NewAppError(
			types.ErrCodeValidationUnsupportedEvent,
			fmt.Sprintf("unsupported alert event type %T", event),
			nil,
		)
	}
}

// deliverAll attempts delivery to every recipient with bounded concurrency
// and returns exactly one record per recipient, in recipient order. Goroutine
// i writes only records[i], so no mutex is needed around the slice.
func (d *Dispatcher) deliverAll(ctx context.Context, plan *fanoutPlan, recipients []types.UserLocation) []*types.NotificationRecord {
	records := make([]*types.NotificationRecord, len(recipients))

	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)

	for i, recipient := range recipients {
		i, recipient := i, recipient

		g.Go(func() error {
			title, body := plan.content(recipient.DistanceKm)
			rec := &types.NotificationRecord{
				ID:          NewNotificationID(),
				RecipientID: recipient.UserID,
				TriggerRef:  plan.triggerRef,
				Kind:        plan.kind,
				Title:       title,
				Body:        body,
				SentAt:      d.clock.Now(),
			}
			d.deliverOne(ctx, rec)
			records[i] = rec
			// Failures are recorded in the record, never propagated; one bad
			// recipient must not cancel the rest of the fan-out.
			return nil
		})
	}

	g.Wait()
	return records
}

// deliverOne runs a single recipient to a terminal outcome, filling the
// record's Outcome and FailureReason in place.
func (d *Dispatcher) deliverOne(ctx context.Context, rec *types.NotificationRecord) {
	channel, err := d.resolver.Channel(ctx, rec.RecipientID)
	if err != nil {
		if errors.Is(err, types.ErrNoChannel) {
			rec.Outcome = types.OutcomeSkippedNoChannel
			return
		}
		rec.Outcome = types.OutcomeFailed
		rec.FailureReason = fmt.Sprintf("channel resolution failed: %v", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
	defer cancel()

	metadata := map[string]string{"kind": string(rec.Kind)}
	if rec.TriggerRef != nil {
		metadata["trigger_ref"] = *rec.TriggerRef
	}

	if _, err := d.sender.Send(sendCtx, channel, rec.Title, rec.Body, metadata); err != nil {
		rec.Outcome = types.OutcomeFailed
		rec.FailureReason = err.Error()
		if d.logger != nil {
			d.logger.Warn("push delivery failed",
				"recipient_id", rec.RecipientID,
				"error", err.Error(),
			)
		}
		return
	}

	rec.Outcome = types.OutcomeDelivered
}

// SendWelcome delivers the one-time welcome notification to a newly
// registered user. There is no geo query and no trigger reference; the
// record's outcome follows the same terminal states as alert deliveries.
func (d *Dispatcher) SendWelcome(ctx context.Context, userID string) (*types.NotificationRecord, error) {
	if userID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingUserID, "user id must not be empty", nil)
	}

	title, body := welcomeContent()
	rec := &types.NotificationRecord{
		ID:          NewNotificationID(),
		RecipientID: userID,
		Kind:        types.KindWelcome,
		Title:       title,
		Body:        body,
		SentAt:      d.clock.Now(),
	}

	d.deliverOne(ctx, rec)

	if err := d.store.Append(ctx, rec); err != nil && d.logger != nil {
		d.logger.Error("failed to persist welcome record",
			"record_id", rec.ID,
			"recipient_id", rec.RecipientID,
			"error", err.Error(),
		)
	}
	if d.recorder != nil {
		d.recorder.RecordDelivery(string(rec.Outcome))
	}

	return rec, nil
}
