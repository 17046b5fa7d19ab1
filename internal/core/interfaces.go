// Package core defines the ports of the trip-api job system. Services depend
// on these interfaces; the data layer and adapters provide implementations.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/roamline/trip-api/internal/domain/model"
)

// JobRepository defines the interface for job record data operations.
//
// MarkRunning, RecordItemResult, Complete, and Fail are guarded transitions:
// each UPDATE carries the expected prior status in its WHERE clause and
// reports via its bool return whether the row actually moved. A false return
// with a nil error means another executor owns the job or it already reached
// a terminal status.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.JobRecord, error)
	GetByID(ctx context.Context, id string) (*model.JobRecord, error)
	GetForOwner(ctx context.Context, id, ownerID string) (*model.JobRecord, error)
	// MarkRunning transitions pending → running, stamping started_at and the
	// progress total in the same statement.
	MarkRunning(ctx context.Context, params MarkRunningParams) (bool, error)
	// RecordItemResult increments progress_completed and snapshots the
	// results payload for a running job.
	RecordItemResult(ctx context.Context, params RecordItemResultParams) (bool, error)
	Complete(ctx context.Context, id string, results []byte) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	Stats(ctx context.Context, kind model.JobKind) (*model.JobStats, error)
	ListForTrip(ctx context.Context, tripID string, limit int) ([]*model.JobRecord, error)
}

// MarkRunningParams groups parameters for JobRepository.MarkRunning.
type MarkRunningParams struct {
	JobID string
	Total int
}

// RecordItemResultParams groups parameters for JobRepository.RecordItemResult.
type RecordItemResultParams struct {
	JobID   string
	Results []byte
}

// TripRepository defines the interface for trip and itinerary data operations.
type TripRepository interface {
	GetByID(ctx context.Context, id string) (*model.Trip, error)
	// ListSteps returns the trip's steps ordered by position.
	ListSteps(ctx context.Context, tripID string) ([]*model.Step, error)
	UpdateStep(ctx context.Context, stepID string, update model.StepUpdate) (*model.Step, error)
}

// TravelEstimate is the result of one route lookup.
type TravelEstimate struct {
	Minutes    float64 `json:"minutes"`
	DistanceKm float64 `json:"distanceKm"`
}

// TravelEstimator computes the travel estimate between two locations.
// Implementations may be remote; failures are per-item, never fatal.
type TravelEstimator interface {
	EstimateTravel(ctx context.Context, from, to string) (*TravelEstimate, error)
}

// CanonicalItem is the authoritative view of a step from the external source.
type CanonicalItem struct {
	Name      string     `json:"name"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

// StepSource fetches the canonical record backing a step's external ref.
type StepSource interface {
	FetchItem(ctx context.Context, externalID string) (*CanonicalItem, error)
}

// Publisher delivers a job event to every connection subscribed to a trip.
// Publish must never block the caller; undeliverable events are dropped.
type Publisher interface {
	Publish(tripID string, event any)
}

// ItemProcessor is the per-kind strategy the engine drives. LoadItems fixes
// the batch (and the progress total) before the job leaves pending;
// ProcessItem handles one item and reports a per-item error without stopping
// the batch; Results serializes the accumulated payload after each item.
type ItemProcessor interface {
	LoadItems(ctx context.Context, trip *model.Trip) ([]ProcessorItem, error)
	ProcessItem(ctx context.Context, item ProcessorItem) error
	Results() ([]byte, error)
}

// ProcessorItem is one unit of work in a job batch.
type ProcessorItem struct {
	ID   string
	From *model.Step
	To   *model.Step
}

// ErrSessionNotFound is returned by SessionStore implementations when a
// token does not resolve to a live session.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore resolves an opaque session token to the owning user id.
// Unknown or expired tokens yield ErrSessionNotFound.
type SessionStore interface {
	UserID(ctx context.Context, token string) (string, error)
}
