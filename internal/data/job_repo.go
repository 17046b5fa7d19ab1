package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/data/pgxutil"
	"github.com/roamline/trip-api/internal/domain/model"
)

// RepoConfig holds configuration options for data-layer repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job record management.
//
// Every status transition is a conditional UPDATE guarded on the prior status,
// so concurrent executors race on the database row rather than in memory: the
// statement that moves the row wins, everyone else sees zero rows affected.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  owner_id,
  trip_id,
  kind,
  status,
  progress_total,
  progress_completed,
  results,
  error_message,
  started_at,
  completed_at,
  created_at,
  updated_at
`

// Create creates a new job record in pending status.
func (r *JobRepo) Create(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.JobRecord, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	var job *model.JobRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
			INSERT INTO jobs(owner_id, trip_id, kind, status)
			VALUES ($1, $2, $3, 'pending')
			RETURNING `+jobColumns, req.OwnerID, req.TripID, req.Kind)
		if qerr != nil {
			return fmt.Errorf("insert job: %w", qerr)
		}
		defer rows.Close()

		var collectErr error
		job, collectErr = collectJobFromRows(rows)
		return collectErr
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetByID retrieves a job record by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.JobRecord, error) {
	return r.getOne(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = $1
	`, id)
}

// GetForOwner retrieves a job record only when it belongs to the given owner.
// A job owned by someone else is indistinguishable from a missing one.
func (r *JobRepo) GetForOwner(ctx context.Context, id, ownerID string) (*model.JobRecord, error) {
	return r.getOne(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
}

func (r *JobRepo) getOne(ctx context.Context, query string, args ...any) (*model.JobRecord, error) {
	var job *model.JobRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var collectErr error
		job, collectErr = collectJobFromRows(rows)
		return collectErr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// MarkRunning transitions a pending job to running, stamping started_at and
// the progress total in the same statement. Returns false when the job is not
// pending anymore (already running or terminal).
func (r *JobRepo) MarkRunning(ctx context.Context, params core.MarkRunningParams) (bool, error) {
	if params.Total < 0 {
		return false, errors.New("total must be >= 0")
	}

	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'running',
		    started_at = $2,
		    progress_total = $3,
		    progress_completed = 0,
		    updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, params.JobID, currentTime, params.Total)
	if err != nil {
		return false, fmt.Errorf("mark job running: %w", err)
	}

	return oneRowMoved(res)
}

// RecordItemResult increments the progress counter and snapshots the results
// payload after one item. Returns false when the job is no longer running.
func (r *JobRepo) RecordItemResult(ctx context.Context, params core.RecordItemResultParams) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET progress_completed = LEAST(progress_completed + 1, progress_total),
		    results = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, params.JobID, params.Results, currentTime)
	if err != nil {
		return false, fmt.Errorf("record item result: %w", err)
	}

	return oneRowMoved(res)
}

// Complete marks a running job as completed with its final results payload.
func (r *JobRepo) Complete(ctx context.Context, id string, results []byte) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed',
		    results = COALESCE($2, results),
		    completed_at = $3,
		    updated_at = $3,
		    error_message = NULL
		WHERE id = $1 AND status = 'running'
	`, id, results, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	return oneRowMoved(res)
}

// Fail marks a job as failed with the given error message. Pending jobs may
// fail too (the engine could not even start the batch).
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    error_message = $2,
		    completed_at = $3,
		    updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'running')
	`, id, errMsg, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	return oneRowMoved(res)
}

// Stats returns statistics about jobs of the given kind in different states.
func (r *JobRepo) Stats(ctx context.Context, kind model.JobKind) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'running')   AS running,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM jobs
  WHERE kind = $1
  `, kind).Scan(
		&s.Pending,
		&s.Running,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// ListForTrip returns the most recent job records for a trip.
func (r *JobRepo) ListForTrip(ctx context.Context, tripID string, limit int) ([]*model.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var jobs []*model.JobRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE trip_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, tripID, limit)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			job, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs for trip: %w", err)
	}
	return jobs, nil
}

func oneRowMoved(res sql.Result) (bool, error) {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// collectJobFromRows collects a single job from pgx rows using pgx v5 helpers.
func collectJobFromRows(rows pgx.Rows) (*model.JobRecord, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	results                []byte
	progressTotal          int
	progressCompleted      int
	errorMessage           sql.NullString
	startedAt, completedAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.JobRecord) error {
	return scanner.Scan(
		&job.ID,
		&job.OwnerID,
		&job.TripID,
		&job.Kind,
		&job.Status,
		&d.progressTotal,
		&d.progressCompleted,
		&d.results,
		&d.errorMessage,
		&d.startedAt,
		&d.completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.JobRecord) {
	job.Progress = model.NewProgress(d.progressCompleted, d.progressTotal)
	if len(d.results) > 0 {
		job.Results = append([]byte(nil), d.results...)
	}
	job.ErrorMessage = cloneNullableString(d.errorMessage)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.JobRecord, error) {
	job := &model.JobRecord{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
