package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/domain/model"
	"github.com/roamline/trip-api/internal/mocks"
)

func strPtr(s string) *string { return &s }

func refStep(id, name, ref string) *model.Step {
	return &model.Step{
		ID:          id,
		TripID:      "trip-1",
		Name:        name,
		ExternalRef: strPtr(ref),
	}
}

func newStepSyncFixture(t *testing.T) (*StepSyncProcessor, *mocks.MockTripRepository, *mocks.MockStepSource) {
	t.Helper()
	ctrl := gomock.NewController(t)
	trips := mocks.NewMockTripRepository(ctrl)
	source := mocks.NewMockStepSource(ctrl)

	p, err := NewStepSyncProcessor(StepSyncProcessorOptions{
		Trips:  trips,
		Source: source,
	})
	require.NoError(t, err)
	return p, trips, source
}

func TestStepSyncProcessor_LoadItems_SkipsStepsWithoutRef(t *testing.T) {
	p, trips, _ := newStepSyncFixture(t)
	trips.EXPECT().ListSteps(gomock.Any(), "trip-1").Return([]*model.Step{
		refStep("s1", "Museum", "ext-1"),
		{ID: "s2", TripID: "trip-1", Name: "Lunch"},
		refStep("s3", "Temple", "ext-3"),
		{ID: "s4", TripID: "trip-1", Name: "Walk", ExternalRef: strPtr("  ")},
	}, nil)

	items, err := p.LoadItems(context.Background(), testTrip())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "s1", items[0].ID)
	assert.Equal(t, "s3", items[1].ID)
}

func TestStepSyncProcessor_ProcessItem_WritesBackDrift(t *testing.T) {
	p, trips, source := newStepSyncFixture(t)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	step := refStep("s1", "Museum", "ext-1")
	source.EXPECT().FetchItem(gomock.Any(), "ext-1").Return(&core.CanonicalItem{
		Name:      "City Museum",
		StartTime: &start,
		EndTime:   &end,
	}, nil)
	trips.EXPECT().
		UpdateStep(gomock.Any(), "s1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, update model.StepUpdate) (*model.Step, error) {
			require.NotNil(t, update.Name)
			assert.Equal(t, "City Museum", *update.Name)
			require.NotNil(t, update.StartTime)
			assert.True(t, update.StartTime.Equal(start))
			return step, nil
		})

	require.NoError(t, p.ProcessItem(context.Background(), core.ProcessorItem{ID: "s1", To: step}))

	payload, err := p.Results()
	require.NoError(t, err)
	var results model.SyncResults
	require.NoError(t, json.Unmarshal(payload, &results))
	assert.Equal(t, 1, results.ItemsSynchronized)
	assert.Equal(t, 1, results.Summary.SynchronizedItems)
	assert.Equal(t, 0, results.Summary.UnchangedItems)
	require.Len(t, results.Summary.Details, 1)
	assert.True(t, results.Summary.Details[0].Changed)
}

func TestStepSyncProcessor_ProcessItem_UnchangedStepSkipsWrite(t *testing.T) {
	p, _, source := newStepSyncFixture(t)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	step := refStep("s1", "Museum", "ext-1")
	step.StartTime = &start
	step.EndTime = &end

	source.EXPECT().FetchItem(gomock.Any(), "ext-1").Return(&core.CanonicalItem{
		Name:      "Museum",
		StartTime: &start,
		EndTime:   &end,
	}, nil)

	require.NoError(t, p.ProcessItem(context.Background(), core.ProcessorItem{ID: "s1", To: step}))

	payload, err := p.Results()
	require.NoError(t, err)
	var results model.SyncResults
	require.NoError(t, json.Unmarshal(payload, &results))
	assert.Equal(t, 0, results.ItemsSynchronized)
	assert.Equal(t, 1, results.Summary.UnchangedItems)
	require.Len(t, results.Summary.Details, 1)
	assert.False(t, results.Summary.Details[0].Changed)
}

func TestStepSyncProcessor_ProcessItem_SourceFailureIsPerItem(t *testing.T) {
	p, _, source := newStepSyncFixture(t)
	step := refStep("s1", "Museum", "ext-1")

	source.EXPECT().FetchItem(gomock.Any(), "ext-1").Return(nil, errors.New("upstream 503"))

	err := p.ProcessItem(context.Background(), core.ProcessorItem{ID: "s1", To: step})
	require.Error(t, err)

	payload, resErr := p.Results()
	require.NoError(t, resErr)
	var results model.SyncResults
	require.NoError(t, json.Unmarshal(payload, &results))
	require.Len(t, results.PerItemErrors, 1)
	assert.Contains(t, results.PerItemErrors[0].Error, "upstream 503")
	assert.Equal(t, 0, results.ItemsSynchronized)
}

func TestStepSyncProcessor_CanonicalWithoutScheduleKeepsStoredTimes(t *testing.T) {
	p, _, source := newStepSyncFixture(t)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	step := refStep("s1", "Museum", "ext-1")
	step.StartTime = &start

	source.EXPECT().FetchItem(gomock.Any(), "ext-1").Return(&core.CanonicalItem{
		Name: "Museum",
	}, nil)

	// Same name, no canonical schedule: nothing to write back.
	require.NoError(t, p.ProcessItem(context.Background(), core.ProcessorItem{ID: "s1", To: step}))

	payload, err := p.Results()
	require.NoError(t, err)
	var results model.SyncResults
	require.NoError(t, json.Unmarshal(payload, &results))
	assert.Equal(t, 1, results.Summary.UnchangedItems)
}
