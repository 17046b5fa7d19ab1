package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxTripNameLen = 255
	maxStepNameLen = 255
)

// Trip is the projection of a trip the job subsystem needs: identity,
// ownership, and the ordered itinerary.
type Trip struct {
	ID        string    `json:"id"         db:"id"`
	OwnerID   string    `json:"owner_id"   db:"owner_id"`
	Name      string    `json:"name"       db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Step is one scheduled entry in a trip's itinerary. Steps are ordered by
// Position; StartTime/EndTime bound the visit, and TravelMinutes/DistanceKm
// hold the stored estimate for reaching this step from the previous one.
type Step struct {
	ID            string     `json:"id"                       db:"id"`
	TripID        string     `json:"trip_id"                  db:"trip_id"`
	Name          string     `json:"name"                     db:"name"`
	Location      string     `json:"location"                 db:"location"`
	StartTime     *time.Time `json:"start_time,omitempty"     db:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"       db:"end_time"`
	TravelMinutes *float64   `json:"travel_minutes,omitempty" db:"travel_minutes"`
	DistanceKm    *float64   `json:"distance_km,omitempty"    db:"distance_km"`
	ExternalRef   *string    `json:"external_ref,omitempty"   db:"external_ref"`
	Position      int        `json:"position"                 db:"position"`
	CreatedAt     time.Time  `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"               db:"updated_at"`
}

// Scheduled reports whether the step carries both schedule bounds.
func (s *Step) Scheduled() bool {
	return s.StartTime != nil && s.EndTime != nil
}

// StepUpdate carries the fields a background job may write back to a step.
// Nil fields are left untouched.
type StepUpdate struct {
	Name          *string    `json:"name,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	TravelMinutes *float64   `json:"travel_minutes,omitempty"`
	DistanceKm    *float64   `json:"distance_km,omitempty"`
}

// HasUpdates reports whether any field is set in StepUpdate.
func (u *StepUpdate) HasUpdates() bool {
	return u.Name != nil || u.StartTime != nil || u.EndTime != nil ||
		u.TravelMinutes != nil || u.DistanceKm != nil
}

// Validate validates StepUpdate, ensuring at least one field is set and values are sane.
func (u *StepUpdate) Validate() error {
	if !u.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if u.Name != nil {
		n := strings.TrimSpace(*u.Name)
		if n == "" {
			return errors.New("name cannot be empty")
		}
		if utf8.RuneCountInString(n) > maxStepNameLen {
			return errors.New("name cannot exceed 255 characters")
		}
	}
	if u.TravelMinutes != nil && *u.TravelMinutes < 0 {
		return errors.New("travel_minutes must be >= 0")
	}
	if u.DistanceKm != nil && *u.DistanceKm < 0 {
		return errors.New("distance_km must be >= 0")
	}
	if u.StartTime != nil && u.EndTime != nil && u.EndTime.Before(*u.StartTime) {
		return errors.New("end_time cannot precede start_time")
	}
	return nil
}
