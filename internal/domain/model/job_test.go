package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobKind_Valid(t *testing.T) {
	assert.True(t, JobKindTravelTime.Valid())
	assert.True(t, JobKindStepSync.Valid())
	assert.False(t, JobKind("unknown").Valid())
	assert.False(t, JobKind("").Valid())
}

func TestJobKind_UnmarshalText(t *testing.T) {
	var k JobKind
	err := k.UnmarshalText([]byte(" Travel-Time-Refresh "))
	require.NoError(t, err)
	assert.Equal(t, JobKindTravelTime, k)

	err = k.UnmarshalText([]byte("bogus"))
	assert.Error(t, err)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{name: "empty batch", completed: 0, total: 0, want: 0},
		{name: "not started", completed: 0, total: 10, want: 0},
		{name: "halfway", completed: 5, total: 10, want: 50},
		{name: "rounds up", completed: 2, total: 3, want: 67},
		{name: "rounds down", completed: 1, total: 3, want: 33},
		{name: "single item done", completed: 1, total: 1, want: 100},
		{name: "all done", completed: 7, total: 7, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressPercentage(tt.completed, tt.total))
		})
	}
}

func TestNewProgress(t *testing.T) {
	p := NewProgress(3, 4)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 3, p.Completed)
	assert.Equal(t, 75, p.Percentage)
}

func TestCreateJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name        string
		req         CreateJobRequest
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid travel-time request",
			req: CreateJobRequest{
				OwnerID: "user-1",
				TripID:  "trip-1",
				Kind:    JobKindTravelTime,
			},
		},
		{
			name: "valid step-sync request",
			req: CreateJobRequest{
				OwnerID: "user-1",
				TripID:  "trip-1",
				Kind:    JobKindStepSync,
			},
		},
		{
			name: "missing owner",
			req: CreateJobRequest{
				TripID: "trip-1",
				Kind:   JobKindTravelTime,
			},
			expectError: true,
			errorMsg:    "owner id is required",
		},
		{
			name: "blank trip id",
			req: CreateJobRequest{
				OwnerID: "user-1",
				TripID:  "   ",
				Kind:    JobKindTravelTime,
			},
			expectError: true,
			errorMsg:    "trip id is required",
		},
		{
			name: "unknown kind",
			req: CreateJobRequest{
				OwnerID: "user-1",
				TripID:  "trip-1",
				Kind:    JobKind("mystery"),
			},
			expectError: true,
			errorMsg:    "invalid job kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
