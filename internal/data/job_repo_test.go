package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/domain/model"
	"github.com/roamline/trip-api/internal/testutil"
)

// createTestTrip inserts a trip row and returns its id. Jobs reference trips,
// so most job tests need one.
func createTestTrip(t *testing.T, db *sql.DB, ownerID, name string) string {
	t.Helper()

	var id string
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO trips (owner_id, name) VALUES ($1, $2) RETURNING id`,
		ownerID, name,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func createPendingJob(t *testing.T, repo *JobRepo, ownerID, tripID string) *model.JobRecord {
	t.Helper()

	job, err := repo.Create(context.Background(), &model.CreateJobRequest{
		OwnerID: ownerID,
		TripID:  tripID,
		Kind:    model.JobKindTravelTime,
	})
	require.NoError(t, err)
	return job
}

func TestJobRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")

		tests := []struct {
			name    string
			req     *model.CreateJobRequest
			wantErr string
		}{
			{
				name: "travel-time job",
				req: &model.CreateJobRequest{
					OwnerID: "user-1",
					TripID:  tripID,
					Kind:    model.JobKindTravelTime,
				},
			},
			{
				name: "step-sync job",
				req: &model.CreateJobRequest{
					OwnerID: "user-1",
					TripID:  tripID,
					Kind:    model.JobKindStepSync,
				},
			},
			{
				name:    "nil request",
				req:     nil,
				wantErr: "create job request is required",
			},
			{
				name: "missing owner",
				req: &model.CreateJobRequest{
					TripID: tripID,
					Kind:   model.JobKindTravelTime,
				},
				wantErr: "owner id is required",
			},
			{
				name: "invalid kind",
				req: &model.CreateJobRequest{
					OwnerID: "user-1",
					TripID:  tripID,
					Kind:    model.JobKind("mystery"),
				},
				wantErr: "invalid job kind",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				job, err := repo.Create(context.Background(), tt.req)

				if tt.wantErr != "" {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr)
					assert.Nil(t, job)
					return
				}

				require.NoError(t, err)
				require.NotNil(t, job)
				assert.NotEmpty(t, job.ID)
				assert.Equal(t, tt.req.OwnerID, job.OwnerID)
				assert.Equal(t, tt.req.TripID, job.TripID)
				assert.Equal(t, tt.req.Kind, job.Kind)
				assert.Equal(t, model.JobStatusPending, job.Status)
				assert.Equal(t, 0, job.Progress.Total)
				assert.Equal(t, 0, job.Progress.Completed)
				assert.Nil(t, job.StartedAt)
				assert.Nil(t, job.CompletedAt)
				assert.NotZero(t, job.CreatedAt)
			})
		}
	})
}

func TestJobRepo_GetForOwner(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")
		job := createPendingJob(t, repo, "user-1", tripID)

		got, err := repo.GetForOwner(context.Background(), job.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)

		// Someone else's job looks exactly like a missing one.
		_, err = repo.GetForOwner(context.Background(), job.ID, "user-2")
		assert.ErrorIs(t, err, ErrJobNotFound)

		_, err = repo.GetByID(context.Background(), uuid.NewString())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Lifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		fixed := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: fixed})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")
		job := createPendingJob(t, repo, "user-1", tripID)

		moved, err := repo.MarkRunning(context.Background(), core.MarkRunningParams{
			JobID: job.ID,
			Total: 3,
		})
		require.NoError(t, err)
		assert.True(t, moved)

		// A second executor loses the race on the same row.
		moved, err = repo.MarkRunning(context.Background(), core.MarkRunningParams{
			JobID: job.ID,
			Total: 3,
		})
		require.NoError(t, err)
		assert.False(t, moved)

		running, err := repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, running.Status)
		assert.Equal(t, 3, running.Progress.Total)
		require.NotNil(t, running.StartedAt)
		assert.Equal(t, testutil.TestTime(), running.StartedAt.UTC())

		fixed.AddTime(time.Minute)

		moved, err = repo.RecordItemResult(context.Background(), core.RecordItemResultParams{
			JobID:   job.ID,
			Results: []byte(`{"items":[{"step_id":"s-1","status":"OK"}]}`),
		})
		require.NoError(t, err)
		assert.True(t, moved)

		progressed, err := repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, progressed.Progress.Completed)
		assert.JSONEq(t, `{"items":[{"step_id":"s-1","status":"OK"}]}`, string(progressed.Results))

		moved, err = repo.Complete(context.Background(), job.ID, []byte(`{"items":[]}`))
		require.NoError(t, err)
		assert.True(t, moved)

		completed, err := repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, completed.Status)
		require.NotNil(t, completed.CompletedAt)

		// Terminal jobs reject further transitions.
		moved, err = repo.Fail(context.Background(), job.ID, "too late")
		require.NoError(t, err)
		assert.False(t, moved)

		moved, err = repo.RecordItemResult(context.Background(), core.RecordItemResultParams{
			JobID:   job.ID,
			Results: []byte(`{}`),
		})
		require.NoError(t, err)
		assert.False(t, moved)
	})
}

func TestJobRepo_Fail_PendingJob(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")
		job := createPendingJob(t, repo, "user-1", tripID)

		// The engine may fail a job before it ever starts the batch.
		moved, err := repo.Fail(context.Background(), job.ID, "trip no longer exists")
		require.NoError(t, err)
		assert.True(t, moved)

		failed, err := repo.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		require.NotNil(t, failed.ErrorMessage)
		assert.Equal(t, "trip no longer exists", *failed.ErrorMessage)
	})
}

func TestJobRepo_StatsAndListForTrip(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		tripID := createTestTrip(t, db, "user-1", "Lisbon")
		otherTrip := createTestTrip(t, db, "user-1", "Kyoto")

		first := createPendingJob(t, repo, "user-1", tripID)
		second := createPendingJob(t, repo, "user-1", tripID)
		createPendingJob(t, repo, "user-1", otherTrip)

		moved, err := repo.MarkRunning(context.Background(), core.MarkRunningParams{
			JobID: second.ID,
			Total: 1,
		})
		require.NoError(t, err)
		require.True(t, moved)

		stats, err := repo.Stats(context.Background(), model.JobKindTravelTime)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Pending)
		assert.Equal(t, 1, stats.Running)
		assert.Equal(t, 0, stats.Completed)
		assert.Equal(t, 0, stats.Failed)

		jobs, err := repo.ListForTrip(context.Background(), tripID, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		for _, j := range jobs {
			assert.Equal(t, tripID, j.TripID)
		}
		assert.ElementsMatch(t,
			[]string{first.ID, second.ID},
			[]string{jobs[0].ID, jobs[1].ID},
		)
	})
}
