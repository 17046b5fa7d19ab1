// Package metrics centralizes the StatsD metric names and tag shapes emitted
// by the job engine and notification hub.
package metrics

import (
	"time"

	obserrors "github.com/roamline/trip-api/internal/observability/errors"
	"github.com/roamline/trip-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	JobKind    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_kind":   in.JobKind,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitJobItem records the outcome and duration of one item within a job batch.
func EmitJobItem(sink statsd.Sink, jobKind, result string, duration time.Duration) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_kind": jobKind,
		"result":   result,
	}

	sink.Count("job.item.processed", 1, tags)
	if duration > 0 {
		sink.Timing("job.item.duration", duration, CloneTags(tags))
	}
}

// EmitHubConnections records the current number of live hub connections.
func EmitHubConnections(sink statsd.Sink, count int) {
	if sink == nil {
		return
	}
	sink.Gauge("hub.connections", float64(count), nil)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
