// Package model defines the core data types and structures used throughout the trip-api job system.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// JobKind represents the kind of background job to be executed.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobKind string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobKindTravelTime recomputes travel-time estimates across a trip's
	// itinerary and classifies the feasibility of each transition.
	JobKindTravelTime JobKind = "travel-time-refresh"
	// JobKindStepSync synchronizes a trip's steps against the canonical
	// external data source.
	JobKindStepSync JobKind = "step-sync"

	// JobStatusPending indicates a job has been created but not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job has finished; individual items may
	// still have failed (see the results payload's perItemErrors).
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job was aborted by a fatal error.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobKind to allow env/JSON parsing.
func (k *JobKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jk := JobKind(v)
	if jk.Valid() {
		*k = jk
		return nil
	}
	return fmt.Errorf("invalid JobKind: %q", v)
}

// Valid returns true if the JobKind is valid.
func (k JobKind) Valid() bool {
	return k == JobKindTravelTime || k == JobKindStepSync
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true once a job can no longer transition.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Progress tracks how far through its items a job has advanced.
// Completed never decreases and never exceeds Total.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	// Percentage is derived from Completed/Total; it is recomputed on every
	// increment and never stored independently.
	Percentage int `json:"percentage"`
}

// NewProgress builds a Progress with the percentage derived from the counters.
func NewProgress(completed, total int) Progress {
	return Progress{
		Total:      total,
		Completed:  completed,
		Percentage: ProgressPercentage(completed, total),
	}
}

// ProgressPercentage computes round(completed/total*100), or 0 when total is 0.
func ProgressPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ItemError records a recovered per-item failure. The batch continues past it.
type ItemError struct {
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
}

// TravelTimeSummary aggregates a travel-time refresh run.
type TravelTimeSummary struct {
	TotalDistanceKm   float64 `json:"totalDistance"`
	TotalTravelTime   float64 `json:"totalTravelTime"`
	InconsistentItems int     `json:"inconsistentItems"`
	WarningItems      int     `json:"warningItems"`
}

// TravelTimeItemDetail records the verdict for one itinerary transition.
type TravelTimeItemDetail struct {
	FromStepID    string  `json:"fromStepId"`
	ToStepID      string  `json:"toStepId"`
	TravelMinutes float64 `json:"travelMinutes"`
	GapMinutes    float64 `json:"gapMinutes"`
	Verdict       string  `json:"verdict"`
}

// TravelTimeResults is the kind-specific results payload for travel-time jobs.
type TravelTimeResults struct {
	ItemsProcessed int                    `json:"itemsProcessed"`
	PerItemErrors  []ItemError            `json:"perItemErrors"`
	Details        []TravelTimeItemDetail `json:"details,omitempty"`
	Summary        TravelTimeSummary      `json:"summary"`
}

// SyncItemDetail records one step's before/after comparison against the canonical source.
type SyncItemDetail struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Before   string `json:"before"`
	After    string `json:"after"`
	Changed  bool   `json:"changed"`
}

// SyncSummary aggregates a step-sync run.
type SyncSummary struct {
	TotalItems        int              `json:"totalItems"`
	SynchronizedItems int              `json:"synchronizedItems"`
	UnchangedItems    int              `json:"unchangedItems"`
	Details           []SyncItemDetail `json:"details"`
}

// SyncResults is the kind-specific results payload for step-sync jobs.
type SyncResults struct {
	ItemsProcessed    int         `json:"itemsProcessed"`
	ItemsSynchronized int         `json:"itemsSynchronized"`
	PerItemErrors     []ItemError `json:"perItemErrors"`
	Summary           SyncSummary `json:"summary"`
}

// JobRecord represents a long-running background job with its lifecycle state,
// progress counters, and kind-specific results.
//
// A JobRecord is exclusively owned by the engine execution that started it
// until it reaches a terminal status; afterwards it is read-only history.
type JobRecord struct {
	ID           string     `json:"id"                      db:"id"`
	OwnerID      string     `json:"owner_id"                db:"owner_id"`
	TripID       string     `json:"trip_id"                 db:"trip_id"`
	Kind         JobKind    `json:"kind"                    db:"kind"`
	Status       JobStatus  `json:"status"                  db:"status"`
	Progress     Progress   `json:"progress"`
	Results      []byte     `json:"results,omitempty"       db:"results"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	StartedAt    *time.Time `json:"started_at,omitempty"    db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"              db:"updated_at"`
}

// CreateJobRequest represents a request to create a new job in pending status.
type CreateJobRequest struct {
	OwnerID string  `json:"owner_id"`
	TripID  string  `json:"trip_id"`
	Kind    JobKind `json:"kind"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if strings.TrimSpace(r.TripID) == "" {
		return errors.New("trip id is required")
	}
	if !r.Kind.Valid() {
		return errors.New("invalid job kind")
	}
	return nil
}

// JobStats represents statistics about jobs in different states.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
