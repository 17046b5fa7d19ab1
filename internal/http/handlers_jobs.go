// Package httpx provides HTTP handlers and utilities for the trip job API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/roamline/trip-api/internal/domain/model"
	"github.com/roamline/trip-api/internal/service"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 100
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc    *service.JobService
	Engine *service.Engine
}

// CreateJob handles POST /api/trips/{tripID}/jobs.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")
	if tripID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("trip id is required")},
		)
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	var body struct {
		Kind model.JobKind `json:"kind"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}

	job, err := h.Svc.Create(r.Context(), &model.CreateJobRequest{
		OwnerID: userID,
		TripID:  tripID,
		Kind:    body.Kind,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// StartJob handles POST /api/jobs/{id}/start. The transition to running
// happens before this returns; item processing continues in the background.
func (h *JobHandlers) StartJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	// Ownership gate: a job someone else owns looks like it does not exist.
	if _, err := h.Svc.GetStatus(r.Context(), jobID, userID); err != nil {
		WriteAppError(w, err)
		return
	}

	if err := h.Engine.Start(r.Context(), jobID); err != nil {
		WriteAppError(w, err)
		return
	}

	job, err := h.Svc.GetStatus(r.Context(), jobID, userID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

// GetStatus handles GET /api/jobs/{id}.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	job, err := h.Svc.GetStatus(r.Context(), jobID, userID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ListForTrip handles GET /api/trips/{tripID}/jobs.
func (h *JobHandlers) ListForTrip(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")
	if tripID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("trip id is required")},
		)
		return
	}
	userID, _ := UserIDFromContext(r.Context())
	limit := parseLimit(r, defaultJobListLimit, maxJobListLimit)

	jobs, err := h.Svc.ListForTrip(r.Context(), tripID, userID, limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// Stats handles GET /api/jobs/kinds/{kind}/stats.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	kind := model.JobKind(r.PathValue("kind"))
	if kind == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job kind is required")},
		)
		return
	}

	stats, err := h.Svc.Stats(r.Context(), kind)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
