package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamline/trip-api/internal/observability/notify"
)

func TestClient_SendJobFailure(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewClient(Config{RoutingKey: "rk-1", Endpoint: srv.URL})
	require.NoError(t, err)

	err = c.SendJobFailure(context.Background(), notify.JobFailurePayload{
		JobID:      "job-1",
		JobKind:    "step-sync",
		TripID:     "trip-1",
		Error:      "catalog unreachable",
		OccurredAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "rk-1", got["routing_key"])
	assert.Equal(t, "trigger", got["event_action"])
	assert.Equal(t, "step-sync:job-1", got["dedup_key"])

	payload, _ := got["payload"].(map[string]any)
	require.NotNil(t, payload)
	assert.Equal(t, "Job job-1 (step-sync) failed", payload["summary"])
	assert.Equal(t, notify.SeverityCritical, payload["severity"])

	custom, _ := payload["custom_details"].(map[string]any)
	require.NotNil(t, custom)
	assert.Equal(t, "trip-1", custom["trip_id"])
	assert.Equal(t, "catalog unreachable", custom["error"])
}

func TestClient_SendJobFailure_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient(Config{RoutingKey: "rk-1", Endpoint: srv.URL})
	require.NoError(t, err)

	err = c.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid routing key")
}

func TestNewClient_RequiresRoutingKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
