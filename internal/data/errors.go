package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job record does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrTripNotFound is returned when a trip does not exist.
	ErrTripNotFound = errors.New("trip not found")
	// ErrStepNotFound is returned when a trip step does not exist.
	ErrStepNotFound = errors.New("step not found")
)
