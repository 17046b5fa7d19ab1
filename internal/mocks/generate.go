// Package mocks provides mock implementations for testing the trip-api job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the core port interfaces. The generated files are committed so tests build
// without a generate step; regenerate after interface changes with:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/roamline/trip-api/internal/core JobRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=trip_repository_mock.go github.com/roamline/trip-api/internal/core TripRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=travel_estimator_mock.go github.com/roamline/trip-api/internal/core TravelEstimator

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=step_source_mock.go github.com/roamline/trip-api/internal/core StepSource

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=publisher_mock.go github.com/roamline/trip-api/internal/core Publisher

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/roamline/trip-api/internal/core CacheRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=session_store_mock.go github.com/roamline/trip-api/internal/core SessionStore
