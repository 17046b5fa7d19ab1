// Package notify carries job failure notifications to external sinks.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// JobFailurePayload captures the canonical data we emit for job failure notifications.
type JobFailurePayload struct {
	JobID      string
	JobKind    string
	TripID     string
	Error      string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming job failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure implements the Sink interface.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// Fanout delivers a payload to every sink, collecting nothing: each sink is
// responsible for its own retries, and one sink's failure never blocks another.
type Fanout []Sink

// SendJobFailure implements the Sink interface over all member sinks.
// The last error encountered is returned.
func (f Fanout) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	var lastErr error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.SendJobFailure(ctx, payload); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
