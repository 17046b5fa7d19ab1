package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/domain/model"
)

// StepSyncProcessorOptions groups dependencies for StepSyncProcessor.
type StepSyncProcessorOptions struct {
	Trips  core.TripRepository // Required: step write-backs
	Source core.StepSource     // Required: canonical data source
	Logger *slog.Logger        // Optional
}

// StepSyncProcessor reconciles a trip's steps against the canonical external
// source. Each item is one step with an external reference: fetch the
// canonical record, compare name and schedule, and write back when they
// drifted.
//
// A processor instance accumulates one job's results and must not be reused.
type StepSyncProcessor struct {
	trips  core.TripRepository
	source core.StepSource
	logger *slog.Logger

	results model.SyncResults
}

// NewStepSyncProcessor constructs a new StepSyncProcessor.
func NewStepSyncProcessor(opts StepSyncProcessorOptions) (*StepSyncProcessor, error) {
	if opts.Trips == nil {
		return nil, errors.New("TripRepository is required")
	}
	if opts.Source == nil {
		return nil, errors.New("StepSource is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StepSyncProcessor{
		trips:  opts.Trips,
		source: opts.Source,
		logger: logger.With("component", "stepsync_processor"),
		results: model.SyncResults{
			PerItemErrors: []model.ItemError{},
			Summary: model.SyncSummary{
				Details: []model.SyncItemDetail{},
			},
		},
	}, nil
}

// LoadItems builds the batch: one item per step that carries an external
// reference, in itinerary order.
func (p *StepSyncProcessor) LoadItems(
	ctx context.Context,
	trip *model.Trip,
) ([]core.ProcessorItem, error) {
	steps, err := p.trips.ListSteps(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}

	var items []core.ProcessorItem
	for _, step := range steps {
		if step.ExternalRef == nil || strings.TrimSpace(*step.ExternalRef) == "" {
			continue
		}
		items = append(items, core.ProcessorItem{ID: step.ID, To: step})
	}

	p.results.Summary.TotalItems = len(items)
	return items, nil
}

// ProcessItem reconciles one step. Any returned error has already been folded
// into the results as a per-item error.
func (p *StepSyncProcessor) ProcessItem(ctx context.Context, item core.ProcessorItem) error {
	p.results.ItemsProcessed++

	if err := p.syncStep(ctx, item.To); err != nil {
		p.results.PerItemErrors = append(p.results.PerItemErrors, model.ItemError{
			ItemID: item.ID,
			Error:  err.Error(),
		})
		return err
	}
	return nil
}

func (p *StepSyncProcessor) syncStep(ctx context.Context, step *model.Step) error {
	if step == nil || step.ExternalRef == nil {
		return errors.New("step has no external reference")
	}

	canonical, err := p.source.FetchItem(ctx, *step.ExternalRef)
	if err != nil {
		return fmt.Errorf("fetch canonical item: %w", err)
	}

	update, changed := diffStep(step, canonical)
	detail := model.SyncItemDetail{
		ItemID:   step.ID,
		ItemName: step.Name,
		Before:   describeStep(step.Name, step.StartTime, step.EndTime),
		After:    describeStep(canonical.Name, canonical.StartTime, canonical.EndTime),
		Changed:  changed,
	}

	if changed {
		if _, err := p.trips.UpdateStep(ctx, step.ID, update); err != nil {
			return fmt.Errorf("write canonical data back: %w", err)
		}
		p.results.ItemsSynchronized++
		p.results.Summary.SynchronizedItems++
	} else {
		p.results.Summary.UnchangedItems++
	}

	p.results.Summary.Details = append(p.results.Summary.Details, detail)

	p.logger.DebugContext(ctx, "step reconciled",
		"step_id", step.ID,
		"changed", changed,
	)
	return nil
}

// Results serializes the accumulated payload.
func (p *StepSyncProcessor) Results() ([]byte, error) {
	payload, err := json.Marshal(p.results)
	if err != nil {
		return nil, fmt.Errorf("marshal step-sync results: %w", err)
	}
	return payload, nil
}

// diffStep computes the write-back for fields where the canonical record
// disagrees with the stored step.
func diffStep(step *model.Step, canonical *core.CanonicalItem) (model.StepUpdate, bool) {
	var update model.StepUpdate
	changed := false

	if name := strings.TrimSpace(canonical.Name); name != "" && name != step.Name {
		update.Name = &name
		changed = true
	}
	// A canonical record without schedule data never clears stored times.
	if canonical.StartTime != nil && !sameTime(step.StartTime, canonical.StartTime) {
		update.StartTime = canonical.StartTime
		changed = true
	}
	if canonical.EndTime != nil && !sameTime(step.EndTime, canonical.EndTime) {
		update.EndTime = canonical.EndTime
		changed = true
	}

	return update, changed
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func describeStep(name string, start, end *time.Time) string {
	format := func(t *time.Time) string {
		if t == nil {
			return "unscheduled"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s [%s - %s]", name, format(start), format(end))
}
