package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamline/trip-api/internal/domain/model"
	"github.com/roamline/trip-api/internal/testutil"
)

func createTestStep(t *testing.T, db *sql.DB, tripID, name string, position int, start, end *time.Time) string {
	t.Helper()

	var id string
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO trip_steps (trip_id, name, location, start_time, end_time, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		tripID, name, name+" address", start, end, position,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestTripRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewTripRepo(db, RepoConfig{})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")

		trip, err := repo.GetByID(context.Background(), tripID)
		require.NoError(t, err)
		assert.Equal(t, tripID, trip.ID)
		assert.Equal(t, "user-1", trip.OwnerID)
		assert.Equal(t, "Lisbon", trip.Name)
		assert.NotZero(t, trip.CreatedAt)

		_, err = repo.GetByID(context.Background(), uuid.NewString())
		assert.ErrorIs(t, err, ErrTripNotFound)
	})
}

func TestTripRepo_ListSteps(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewTripRepo(db, RepoConfig{})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")

		start := testutil.TestTime()
		end := start.Add(2 * time.Hour)

		// Insert out of order to prove position wins.
		createTestStep(t, db, tripID, "Dinner", 2, nil, nil)
		createTestStep(t, db, tripID, "Castle", 1, testutil.TimePtr(start), testutil.TimePtr(end))
		createTestStep(t, db, tripID, "Check-in", 0, testutil.TimePtr(start), testutil.TimePtr(end))

		steps, err := repo.ListSteps(context.Background(), tripID)
		require.NoError(t, err)
		require.Len(t, steps, 3)

		assert.Equal(t, "Check-in", steps[0].Name)
		assert.Equal(t, "Castle", steps[1].Name)
		assert.Equal(t, "Dinner", steps[2].Name)

		assert.True(t, steps[0].Scheduled())
		assert.False(t, steps[2].Scheduled())

		empty, err := repo.ListSteps(context.Background(), uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestTripRepo_UpdateStep(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		fixed := NewFixedTimeProvider(testutil.TestTime())
		repo := NewTripRepo(db, RepoConfig{TimeProvider: fixed})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")
		stepID := createTestStep(t, db, tripID, "Castle", 0, nil, nil)

		minutes := 42.5
		distance := 12.3
		step, err := repo.UpdateStep(context.Background(), stepID, model.StepUpdate{
			TravelMinutes: &minutes,
			DistanceKm:    &distance,
		})
		require.NoError(t, err)
		require.NotNil(t, step.TravelMinutes)
		assert.InDelta(t, minutes, *step.TravelMinutes, 0.001)
		require.NotNil(t, step.DistanceKm)
		assert.InDelta(t, distance, *step.DistanceKm, 0.001)
		assert.Equal(t, "Castle", step.Name)

		// Name writes are trimmed.
		name := "  Castelo de São Jorge  "
		step, err = repo.UpdateStep(context.Background(), stepID, model.StepUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Castelo de São Jorge", step.Name)

		_, err = repo.UpdateStep(context.Background(), uuid.NewString(), model.StepUpdate{
			TravelMinutes: &minutes,
		})
		assert.ErrorIs(t, err, ErrStepNotFound)

		_, err = repo.UpdateStep(context.Background(), stepID, model.StepUpdate{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one field")
	})
}
