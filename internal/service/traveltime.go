package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/domain/consistency"
	"github.com/roamline/trip-api/internal/domain/model"
)

// TravelTimeProcessorOptions groups dependencies for TravelTimeProcessor.
type TravelTimeProcessorOptions struct {
	Trips     core.TripRepository  // Required: step write-backs
	Estimator core.TravelEstimator // Required
	Logger    *slog.Logger         // Optional
}

// TravelTimeProcessor refreshes travel estimates for a trip's itinerary.
// Each item is one transition between consecutive steps: estimate the travel,
// classify it against the scheduled gap, and write the estimate back to the
// destination step.
//
// A processor instance accumulates one job's results and must not be reused.
type TravelTimeProcessor struct {
	trips     core.TripRepository
	estimator core.TravelEstimator
	logger    *slog.Logger

	results model.TravelTimeResults
}

// NewTravelTimeProcessor constructs a new TravelTimeProcessor.
func NewTravelTimeProcessor(opts TravelTimeProcessorOptions) (*TravelTimeProcessor, error) {
	if opts.Trips == nil {
		return nil, errors.New("TripRepository is required")
	}
	if opts.Estimator == nil {
		return nil, errors.New("TravelEstimator is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TravelTimeProcessor{
		trips:     opts.Trips,
		estimator: opts.Estimator,
		logger:    logger.With("component", "traveltime_processor"),
		results: model.TravelTimeResults{
			PerItemErrors: []model.ItemError{},
		},
	}, nil
}

// LoadItems builds the batch: one item per consecutive step pair, in
// itinerary order.
func (p *TravelTimeProcessor) LoadItems(
	ctx context.Context,
	trip *model.Trip,
) ([]core.ProcessorItem, error) {
	steps, err := p.trips.ListSteps(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}

	if len(steps) < 2 {
		return nil, nil
	}

	items := make([]core.ProcessorItem, 0, len(steps)-1)
	for i := 1; i < len(steps); i++ {
		from, to := steps[i-1], steps[i]
		items = append(items, core.ProcessorItem{
			ID:   from.ID + "->" + to.ID,
			From: from,
			To:   to,
		})
	}
	return items, nil
}

// ProcessItem estimates one transition and records its verdict. Any returned
// error has already been folded into the results as a per-item error.
func (p *TravelTimeProcessor) ProcessItem(ctx context.Context, item core.ProcessorItem) error {
	p.results.ItemsProcessed++

	if err := p.processTransition(ctx, item); err != nil {
		p.results.PerItemErrors = append(p.results.PerItemErrors, model.ItemError{
			ItemID: item.ID,
			Error:  err.Error(),
		})
		return err
	}
	return nil
}

func (p *TravelTimeProcessor) processTransition(ctx context.Context, item core.ProcessorItem) error {
	from, to := item.From, item.To
	if from == nil || to == nil {
		return errors.New("transition is missing a step")
	}
	if from.EndTime == nil || to.StartTime == nil {
		return errors.New("steps are not fully scheduled")
	}
	if from.Location == "" || to.Location == "" {
		return errors.New("steps are missing locations")
	}

	est, err := p.estimator.EstimateTravel(ctx, from.Location, to.Location)
	if err != nil {
		return fmt.Errorf("estimate travel: %w", err)
	}

	gapMinutes := to.StartTime.Sub(*from.EndTime).Minutes()
	verdict := consistency.Classify(est.Minutes, gapMinutes)

	if _, err := p.trips.UpdateStep(ctx, to.ID, model.StepUpdate{
		TravelMinutes: &est.Minutes,
		DistanceKm:    &est.DistanceKm,
	}); err != nil {
		return fmt.Errorf("write estimate back: %w", err)
	}

	p.results.Details = append(p.results.Details, model.TravelTimeItemDetail{
		FromStepID:    from.ID,
		ToStepID:      to.ID,
		TravelMinutes: est.Minutes,
		GapMinutes:    gapMinutes,
		Verdict:       string(verdict),
	})
	p.results.Summary.TotalDistanceKm += est.DistanceKm
	p.results.Summary.TotalTravelTime += est.Minutes
	switch verdict {
	case consistency.VerdictError:
		p.results.Summary.InconsistentItems++
	case consistency.VerdictWarning:
		p.results.Summary.WarningItems++
	}

	p.logger.DebugContext(ctx, "transition classified",
		"from_step", from.ID,
		"to_step", to.ID,
		"travel_minutes", est.Minutes,
		"gap_minutes", gapMinutes,
		"verdict", verdict,
	)
	return nil
}

// Results serializes the accumulated payload.
func (p *TravelTimeProcessor) Results() ([]byte, error) {
	payload, err := json.Marshal(p.results)
	if err != nil {
		return nil, fmt.Errorf("marshal travel-time results: %w", err)
	}
	return payload, nil
}
