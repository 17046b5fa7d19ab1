package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/roamline/trip-api/internal/data/pgxutil"
	"github.com/roamline/trip-api/internal/domain/model"
)

// TripRepo provides read access to trips and their itineraries, plus the
// step write-backs the background jobs perform.
type TripRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewTripRepo creates a new TripRepo instance with the given database connection and configuration.
func NewTripRepo(db *sql.DB, cfg RepoConfig) *TripRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &TripRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const stepColumns = `
  id,
  trip_id,
  name,
  location,
  start_time,
  end_time,
  travel_minutes,
  distance_km,
  external_ref,
  position,
  created_at,
  updated_at
`

// GetByID retrieves a trip by its ID.
func (r *TripRepo) GetByID(ctx context.Context, id string) (*model.Trip, error) {
	var trip model.Trip
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, name, created_at, updated_at
		FROM trips
		WHERE id = $1
	`, id).Scan(&trip.ID, &trip.OwnerID, &trip.Name, &trip.CreatedAt, &trip.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	return &trip, nil
}

// ListSteps returns the trip's steps ordered by position.
func (r *TripRepo) ListSteps(ctx context.Context, tripID string) ([]*model.Step, error) {
	var steps []*model.Step
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
			SELECT `+stepColumns+`
			FROM trip_steps
			WHERE trip_id = $1
			ORDER BY position ASC, created_at ASC
		`, tripID)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			step, scanErr := scanStepFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			steps = append(steps, step)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list trip steps: %w", err)
	}
	return steps, nil
}

// UpdateStep applies the set fields of a StepUpdate to one step and returns
// the refreshed row.
func (r *TripRepo) UpdateStep(
	ctx context.Context,
	stepID string,
	update model.StepUpdate,
) (*model.Step, error) {
	if validateErr := update.Validate(); validateErr != nil {
		return nil, validateErr
	}

	setClauses := make([]string, 0, 6)
	args := []any{stepID}

	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		addSet("name", strings.TrimSpace(*update.Name))
	}
	if update.StartTime != nil {
		addSet("start_time", update.StartTime.UTC())
	}
	if update.EndTime != nil {
		addSet("end_time", update.EndTime.UTC())
	}
	if update.TravelMinutes != nil {
		addSet("travel_minutes", *update.TravelMinutes)
	}
	if update.DistanceKm != nil {
		addSet("distance_km", *update.DistanceKm)
	}
	addSet("updated_at", r.timeProvider.Now().UTC())

	query := `
		UPDATE trip_steps
		SET ` + strings.Join(setClauses, ",\n		    ") + `
		WHERE id = $1
		RETURNING ` + stepColumns

	var step *model.Step
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		if !rows.Next() {
			if rowsErr := rows.Err(); rowsErr != nil {
				return rowsErr
			}
			return pgx.ErrNoRows
		}
		var scanErr error
		step, scanErr = scanStepFromRow(rows)
		if scanErr != nil {
			return scanErr
		}
		return rows.Err()
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStepNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update trip step: %w", err)
	}
	return step, nil
}

type stepRowScanner interface {
	Scan(dest ...any) error
}

func scanStepFromRow(scanner stepRowScanner) (*model.Step, error) {
	var step model.Step
	var startTime, endTime sql.NullTime
	var travelMinutes, distanceKm sql.NullFloat64
	var externalRef sql.NullString

	err := scanner.Scan(
		&step.ID,
		&step.TripID,
		&step.Name,
		&step.Location,
		&startTime,
		&endTime,
		&travelMinutes,
		&distanceKm,
		&externalRef,
		&step.Position,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	step.StartTime = cloneNullableTime(startTime)
	step.EndTime = cloneNullableTime(endTime)
	step.TravelMinutes = cloneNullableFloat(travelMinutes)
	step.DistanceKm = cloneNullableFloat(distanceKm)
	step.ExternalRef = cloneNullableString(externalRef)
	return &step, nil
}

func cloneNullableFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
