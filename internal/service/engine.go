package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/data"
	"github.com/roamline/trip-api/internal/domain/model"
	apperrors "github.com/roamline/trip-api/internal/errors"
	"github.com/roamline/trip-api/internal/hub"
	"github.com/roamline/trip-api/internal/observability/metrics"
	"github.com/roamline/trip-api/internal/observability/notify"
	"github.com/roamline/trip-api/internal/observability/statsd"
)

const defaultItemTimeout = 30 * time.Second

// ProcessorFactory builds a fresh ItemProcessor for one job execution.
// Processors are stateful (they accumulate results), so each run gets its own.
type ProcessorFactory func(kind model.JobKind) (core.ItemProcessor, error)

// EngineOptions groups dependencies for Engine.
type EngineOptions struct {
	Jobs       core.JobRepository  // Required
	Trips      core.TripRepository // Required
	Processors ProcessorFactory    // Required
	Publisher  core.Publisher      // Required: trip event fan-out
	Logger     *slog.Logger        // Required
	Metrics    statsd.Sink         // Optional
	Notifier   notify.Sink         // Optional: alerted on job failure
	// ItemTimeout bounds each item's processing. Defaults to 30s.
	ItemTimeout  time.Duration
	TimeProvider data.TimeProvider // Optional
}

// Engine executes job batches. Start performs the pending → running
// transition synchronously, then detaches a goroutine that processes the
// batch item by item: per-item failures are recorded and the batch continues;
// fatal failures terminate the job as failed.
//
// The guarded MarkRunning UPDATE is the whole mutual-exclusion story: two
// concurrent Start calls race on it, exactly one wins, the other gets
// InvalidState.
type Engine struct {
	jobs         core.JobRepository
	trips        core.TripRepository
	processors   ProcessorFactory
	publisher    core.Publisher
	logger       *slog.Logger
	metrics      statsd.Sink
	notifier     notify.Sink
	itemTimeout  time.Duration
	timeProvider data.TimeProvider

	mu      sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewEngine constructs a new Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Trips == nil {
		return nil, errors.New("TripRepository is required")
	}
	if opts.Processors == nil {
		return nil, errors.New("ProcessorFactory is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("Publisher is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("Logger is required")
	}

	itemTimeout := opts.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = defaultItemTimeout
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	return &Engine{
		jobs:         opts.Jobs,
		trips:        opts.Trips,
		processors:   opts.Processors,
		publisher:    opts.Publisher,
		logger:       opts.Logger.With("component", "engine"),
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		itemTimeout:  itemTimeout,
		timeProvider: tp,
		baseCtx:      context.Background(),
	}, nil
}

// MustNewEngine constructs a new Engine and panics on error.
func MustNewEngine(opts EngineOptions) *Engine {
	e, err := NewEngine(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create Engine: %v", err))
	}
	return e
}

// Run parks the engine on the given context: detached job goroutines inherit
// it, and shutdown waits for in-flight batches to wind down.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()

	<-ctx.Done()
	e.wg.Wait()
	return ctx.Err()
}

func (e *Engine) base() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseCtx
}

// Start moves a pending job to running and detaches its execution. It returns
// once the transition is durable; callers observe further progress via
// polling or the notification hub.
//
// NotFound: no such job. InvalidState: the job already left pending.
func (e *Engine) Start(ctx context.Context, jobID string) error {
	job, err := e.jobs.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return apperrors.NotFound("job not found")
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	trip, err := e.trips.GetByID(ctx, job.TripID)
	if errors.Is(err, data.ErrTripNotFound) {
		// The trip vanished between creation and start; the job can never run.
		if _, failErr := e.jobs.Fail(ctx, job.ID, "trip no longer exists"); failErr != nil {
			e.logger.ErrorContext(ctx, "fail orphaned job", "job_id", job.ID, "error", failErr)
		}
		return apperrors.NotFound("trip not found")
	}
	if err != nil {
		return fmt.Errorf("load trip: %w", err)
	}

	processor, err := e.processors(job.Kind)
	if err != nil {
		return fmt.Errorf("build processor for %s: %w", job.Kind, err)
	}

	items, err := processor.LoadItems(ctx, trip)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}

	moved, err := e.jobs.MarkRunning(ctx, core.MarkRunningParams{
		JobID: job.ID,
		Total: len(items),
	})
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	if !moved {
		if _, getErr := e.jobs.GetByID(ctx, job.ID); errors.Is(getErr, data.ErrJobNotFound) {
			return apperrors.NotFound("job not found")
		}
		return apperrors.InvalidStatef("job %s is not pending", job.ID)
	}

	e.emitTransition(job.Kind, "running", metrics.ResultSuccess, 0, nil)
	e.logger.InfoContext(ctx, "job started",
		"job_id", job.ID,
		"kind", job.Kind,
		"trip_id", job.TripID,
		"items", len(items),
	)

	e.publishSnapshot(ctx, job.ID, hub.NewJobProgressEvent)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runJob(e.base(), runParams{
			jobID:     job.ID,
			kind:      job.Kind,
			tripID:    job.TripID,
			processor: processor,
			items:     items,
		})
	}()

	return nil
}

type runParams struct {
	jobID     string
	kind      model.JobKind
	tripID    string
	processor core.ItemProcessor
	items     []core.ProcessorItem
}

// runJob drives one batch to a terminal status. It owns the job row from here
// on; every exit path ends in Complete or Fail.
func (e *Engine) runJob(ctx context.Context, p runParams) {
	start := e.timeProvider.Now()

	for _, item := range p.items {
		if ctx.Err() != nil {
			e.failJob(p, start, "engine shut down mid-run")
			return
		}

		e.processItem(ctx, p, item)

		results, resErr := p.processor.Results()
		if resErr != nil {
			e.failJob(p, start, fmt.Sprintf("serialize results: %v", resErr))
			return
		}

		moved, recErr := e.jobs.RecordItemResult(ctx, core.RecordItemResultParams{
			JobID:   p.jobID,
			Results: results,
		})
		if recErr != nil {
			e.failJob(p, start, fmt.Sprintf("persist progress: %v", recErr))
			return
		}
		if !moved {
			// The row left running underneath us; nothing more to own.
			e.logger.WarnContext(ctx, "job no longer running, abandoning batch",
				"job_id", p.jobID,
			)
			return
		}

		e.publishSnapshot(ctx, p.jobID, hub.NewJobProgressEvent)
	}

	e.completeJob(ctx, p, start)
}

// processItem runs one item under the per-item timeout. Item errors are
// already recorded inside the processor; here they only feed logs and metrics.
func (e *Engine) processItem(ctx context.Context, p runParams, item core.ProcessorItem) {
	itemCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	itemStart := e.timeProvider.Now()
	err := p.processor.ProcessItem(itemCtx, item)
	duration := e.timeProvider.Now().Sub(itemStart)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		e.logger.WarnContext(ctx, "job item failed",
			"job_id", p.jobID,
			"item_id", item.ID,
			"error", err,
		)
	}
	metrics.EmitJobItem(e.metrics, string(p.kind), result, duration)
}

func (e *Engine) completeJob(ctx context.Context, p runParams, start time.Time) {
	results, err := p.processor.Results()
	if err != nil {
		e.failJob(p, start, fmt.Sprintf("serialize results: %v", err))
		return
	}

	moved, err := e.jobs.Complete(ctx, p.jobID, results)
	if err != nil || !moved {
		e.logger.ErrorContext(ctx, "complete job",
			"job_id", p.jobID,
			"moved", moved,
			"error", err,
		)
		return
	}

	duration := e.timeProvider.Now().Sub(start)
	e.emitTransition(p.kind, "completed", metrics.ResultSuccess, duration, nil)
	e.logger.InfoContext(ctx, "job completed",
		"job_id", p.jobID,
		"kind", p.kind,
		"duration", duration,
	)

	e.publishSnapshot(ctx, p.jobID, hub.NewJobCompletedEvent)
}

// failJob terminates the job as failed. Publishing and bookkeeping use a
// fresh context: the batch context may already be dead.
func (e *Engine) failJob(p runParams, start time.Time, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	moved, err := e.jobs.Fail(ctx, p.jobID, msg)
	if err != nil || !moved {
		e.logger.ErrorContext(ctx, "fail job",
			"job_id", p.jobID,
			"moved", moved,
			"error", err,
		)
		return
	}

	duration := e.timeProvider.Now().Sub(start)
	e.emitTransition(p.kind, "failed", metrics.ResultError, duration, errors.New(msg))
	e.logger.ErrorContext(ctx, "job failed",
		"job_id", p.jobID,
		"kind", p.kind,
		"reason", msg,
	)

	e.publishSnapshot(ctx, p.jobID, hub.NewJobFailedEvent)
	e.notifyFailure(ctx, p, msg)
}

func (e *Engine) notifyFailure(ctx context.Context, p runParams, msg string) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.SendJobFailure(ctx, notify.JobFailurePayload{
		JobID:      p.jobID,
		JobKind:    string(p.kind),
		TripID:     p.tripID,
		Error:      msg,
		Severity:   notify.SeverityCritical,
		OccurredAt: e.timeProvider.Now(),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "job failure notification", "job_id", p.jobID, "error", err)
	}
}

// publishSnapshot reads the current job row and pushes it to the trip's
// subscribers, wrapped by the given event constructor. Failures here never
// affect the batch.
func (e *Engine) publishSnapshot(
	ctx context.Context,
	jobID string,
	event func(*model.JobRecord) hub.ServerMessage,
) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		e.logger.WarnContext(ctx, "snapshot for publish", "job_id", jobID, "error", err)
		return
	}

	e.publisher.Publish(job.TripID, event(job))
}

func (e *Engine) emitTransition(
	kind model.JobKind,
	transition, result string,
	duration time.Duration,
	err error,
) {
	metrics.EmitJobLifecycle(e.metrics, metrics.JobMetric{
		JobKind:    string(kind),
		Transition: transition,
		Result:     result,
		Duration:   duration,
		Err:        err,
	})
}
