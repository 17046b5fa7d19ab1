package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roamline/trip-api/internal/data"
	"github.com/roamline/trip-api/internal/domain/model"
	apperrors "github.com/roamline/trip-api/internal/errors"
	"github.com/roamline/trip-api/internal/mocks"
)

func newTestJobService(t *testing.T) (*JobService, *mocks.MockJobRepository, *mocks.MockTripRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobRepository(ctrl)
	trips := mocks.NewMockTripRepository(ctrl)

	svc := MustNewJobService(JobServiceOptions{
		Jobs:   jobs,
		Trips:  trips,
		Logger: slog.Default(),
	})
	return svc, jobs, trips
}

func TestJobService_Create(t *testing.T) {
	svc, jobs, trips := newTestJobService(t)
	req := &model.CreateJobRequest{
		OwnerID: "user-1",
		TripID:  "trip-1",
		Kind:    model.JobKindTravelTime,
	}

	trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(testTrip(), nil)
	jobs.EXPECT().Create(gomock.Any(), req).Return(pendingJob(), nil)

	job, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, model.JobKindTravelTime, job.Kind)
}

func TestJobService_Create_InvalidRequest(t *testing.T) {
	svc, _, _ := newTestJobService(t)

	_, err := svc.Create(context.Background(), &model.CreateJobRequest{
		OwnerID: "user-1",
		TripID:  "trip-1",
		Kind:    model.JobKind("mystery"),
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Create(context.Background(), nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobService_Create_TripNotFound(t *testing.T) {
	svc, _, trips := newTestJobService(t)
	trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(nil, data.ErrTripNotFound)

	_, err := svc.Create(context.Background(), &model.CreateJobRequest{
		OwnerID: "user-1",
		TripID:  "trip-1",
		Kind:    model.JobKindStepSync,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobService_Create_ForeignTripLooksMissing(t *testing.T) {
	svc, _, trips := newTestJobService(t)
	trip := testTrip()
	trip.OwnerID = "someone-else"
	trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(trip, nil)

	_, err := svc.Create(context.Background(), &model.CreateJobRequest{
		OwnerID: "user-1",
		TripID:  "trip-1",
		Kind:    model.JobKindTravelTime,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobService_GetStatus(t *testing.T) {
	svc, jobs, _ := newTestJobService(t)
	jobs.EXPECT().GetForOwner(gomock.Any(), "job-1", "user-1").Return(pendingJob(), nil)

	job, err := svc.GetStatus(context.Background(), "job-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
}

func TestJobService_GetStatus_NotFound(t *testing.T) {
	svc, jobs, _ := newTestJobService(t)
	jobs.EXPECT().GetForOwner(gomock.Any(), "job-1", "user-2").Return(nil, data.ErrJobNotFound)

	_, err := svc.GetStatus(context.Background(), "job-1", "user-2")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobService_ListForTrip(t *testing.T) {
	svc, jobs, trips := newTestJobService(t)
	trips.EXPECT().GetByID(gomock.Any(), "trip-1").Return(testTrip(), nil)
	jobs.EXPECT().
		ListForTrip(gomock.Any(), "trip-1", 10).
		Return([]*model.JobRecord{pendingJob()}, nil)

	list, err := svc.ListForTrip(context.Background(), "trip-1", "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestJobService_Stats_InvalidKind(t *testing.T) {
	svc, _, _ := newTestJobService(t)

	_, err := svc.Stats(context.Background(), model.JobKind("nope"))
	assert.True(t, apperrors.IsValidation(err))
}
