// Package hub implements the WebSocket notification hub: per-trip
// subscriptions, progress event fan-out, and heartbeat-based eviction of dead
// connections.
package hub

import (
	"encoding/json"
	"strings"

	"github.com/roamline/trip-api/internal/domain/model"
)

// Server-to-client message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeSubscriptionConfirmed = "subscription_confirmed"
	TypePong                  = "pong"
	TypeJobProgress           = "job_progress"
	TypeJobCompleted          = "job_completed"
	TypeJobFailed             = "job_failed"
)

// Client-to-server message types.
const (
	TypePing      = "ping"
	TypeSubscribe = "subscribe"
)

// ClientMessage is the envelope for inbound client messages.
type ClientMessage struct {
	Type   string `json:"type"`
	TripID string `json:"tripId,omitempty"`
}

// Validate normalizes and validates the inbound message.
func (m *ClientMessage) Validate() bool {
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	m.TripID = strings.TrimSpace(m.TripID)

	switch m.Type {
	case TypePing:
		return true
	case TypeSubscribe:
		return m.TripID != ""
	default:
		return false
	}
}

// ServerMessage is the envelope for outbound server messages.
type ServerMessage struct {
	Type   string           `json:"type"`
	TripID string           `json:"tripId,omitempty"`
	UserID string           `json:"userId,omitempty"`
	Job    *model.JobRecord `json:"job,omitempty"`
}

// NewJobProgressEvent builds the event pushed after each processed item.
func NewJobProgressEvent(job *model.JobRecord) ServerMessage {
	return ServerMessage{Type: TypeJobProgress, TripID: job.TripID, Job: job}
}

// NewJobCompletedEvent builds the terminal success event.
func NewJobCompletedEvent(job *model.JobRecord) ServerMessage {
	return ServerMessage{Type: TypeJobCompleted, TripID: job.TripID, Job: job}
}

// NewJobFailedEvent builds the terminal failure event.
func NewJobFailedEvent(job *model.JobRecord) ServerMessage {
	return ServerMessage{Type: TypeJobFailed, TripID: job.TripID, Job: job}
}

func marshalEvent(event any) ([]byte, error) {
	return json.Marshal(event)
}
