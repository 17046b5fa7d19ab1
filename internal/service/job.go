// Package service contains the business logic of the trip-api job system:
// job creation and polling, the engine that executes job batches, and the
// per-kind item processors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/data"
	"github.com/roamline/trip-api/internal/domain/model"
	apperrors "github.com/roamline/trip-api/internal/errors"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Jobs   core.JobRepository  // Required: job repository
	Trips  core.TripRepository // Required: trip repository
	Logger *slog.Logger        // Optional: structured logger
}

// JobService provides business logic for job record operations: creating
// pending jobs and serving owner-scoped status snapshots for polling.
type JobService struct {
	jobs   core.JobRepository
	trips  core.TripRepository
	logger *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Trips == nil {
		return nil, errors.New("TripRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		jobs:   opts.Jobs,
		trips:  opts.Trips,
		logger: logger,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create creates a new pending job for a trip the requester owns.
func (s *JobService) Create(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.JobRecord, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	trip, err := s.trips.GetByID(ctx, req.TripID)
	if errors.Is(err, data.ErrTripNotFound) {
		return nil, apperrors.NotFound("trip not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load trip: %w", err)
	}
	if trip.OwnerID != req.OwnerID {
		// Someone else's trip looks exactly like a missing one.
		return nil, apperrors.NotFound("trip not found")
	}

	job, err := s.jobs.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job created",
			"id", job.ID,
			"kind", job.Kind,
			"trip_id", job.TripID,
			"status", job.Status,
		)
	}

	return job, nil
}

// GetStatus returns an owner-scoped snapshot of a job for polling. A job
// belonging to another owner surfaces as NotFound.
func (s *JobService) GetStatus(
	ctx context.Context,
	jobID, ownerID string,
) (*model.JobRecord, error) {
	job, err := s.jobs.GetForOwner(ctx, jobID, ownerID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFound("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job status: %w", err)
	}
	return job, nil
}

// ListForTrip returns the most recent jobs for a trip the requester owns.
func (s *JobService) ListForTrip(
	ctx context.Context,
	tripID, ownerID string,
	limit int,
) ([]*model.JobRecord, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if errors.Is(err, data.ErrTripNotFound) {
		return nil, apperrors.NotFound("trip not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load trip: %w", err)
	}
	if trip.OwnerID != ownerID {
		return nil, apperrors.NotFound("trip not found")
	}

	jobs, err := s.jobs.ListForTrip(ctx, tripID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns counts of jobs per status for one kind.
func (s *JobService) Stats(ctx context.Context, kind model.JobKind) (*model.JobStats, error) {
	if !kind.Valid() {
		return nil, apperrors.Validationf("invalid job kind: %s", kind)
	}
	stats, err := s.jobs.Stats(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}
