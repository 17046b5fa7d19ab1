// Package devseed populates a development database with demo trips and a
// ready-to-use session so the API can be exercised immediately after startup.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	redisadapter "github.com/roamline/trip-api/internal/adapters/redis"
	"github.com/roamline/trip-api/internal/core"
)

// DemoOwnerID is the user id every seeded trip belongs to.
const DemoOwnerID = "dev-user"

// sessionTTL keeps the seeded session alive for a working day.
const sessionTTL = 8 * time.Hour

// Deps bundles the dependencies needed for development seeding.
type Deps struct {
	DB       *sql.DB
	Sessions core.SessionStore
	Logger   *slog.Logger
}

// Run executes the full development seeding workflow: demo trips with their
// steps, plus a fresh session token logged for manual API calls. Seeding is
// idempotent per trip name.
func Run(ctx context.Context, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, spec := range demoTrips() {
		created, err := seedTrip(ctx, deps.DB, spec)
		if err != nil {
			return fmt.Errorf("seed trip %q: %w", spec.name, err)
		}
		msg := "trip already exists"
		if created {
			msg = "created trip"
		}
		logger.InfoContext(ctx, msg, "name", spec.name, "steps", len(spec.steps))
	}

	token, err := seedSession(ctx, deps.Sessions)
	if err != nil {
		return fmt.Errorf("seed session: %w", err)
	}
	logger.InfoContext(ctx, "seeded dev session",
		"user_id", DemoOwnerID,
		"token", token,
		"expires_in", sessionTTL,
	)

	return nil
}

// seedSession stores a fresh bearer token for the demo user.
func seedSession(ctx context.Context, sessions core.SessionStore) (string, error) {
	store, ok := sessions.(*redisadapter.SessionStore)
	if !ok {
		return "", fmt.Errorf("session store %T does not support seeding", sessions)
	}

	token := uuid.NewString()
	err := store.Save(ctx, token, redisadapter.Session{
		UserID:    DemoOwnerID,
		ExpiresAt: time.Now().Add(sessionTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

type stepSpec struct {
	name        string
	location    string
	start       string // RFC3339, empty for unscheduled steps
	end         string
	externalRef string
}

type tripSpec struct {
	name  string
	steps []stepSpec
}

func demoTrips() []tripSpec {
	return []tripSpec{
		{
			name: "Lisbon long weekend",
			steps: []stepSpec{
				{
					name:     "Hotel check-in",
					location: "Praça do Comércio, Lisbon",
					start:    "2026-09-18T14:00:00Z",
					end:      "2026-09-18T15:00:00Z",
				},
				{
					name:        "Castelo de São Jorge",
					location:    "R. de Santa Cruz do Castelo, Lisbon",
					start:       "2026-09-18T15:30:00Z",
					end:         "2026-09-18T17:30:00Z",
					externalRef: "poi-castelo-sao-jorge",
				},
				{
					name:        "Time Out Market dinner",
					location:    "Av. 24 de Julho 49, Lisbon",
					start:       "2026-09-18T19:00:00Z",
					end:         "2026-09-18T21:00:00Z",
					externalRef: "poi-timeout-market",
				},
			},
		},
		{
			name: "Kyoto temples",
			steps: []stepSpec{
				{
					name:        "Fushimi Inari",
					location:    "68 Fukakusa Yabunouchicho, Kyoto",
					start:       "2026-11-03T08:00:00Z",
					end:         "2026-11-03T11:00:00Z",
					externalRef: "poi-fushimi-inari",
				},
				{
					name:        "Kinkaku-ji",
					location:    "1 Kinkakujicho, Kyoto",
					start:       "2026-11-03T11:15:00Z",
					end:         "2026-11-03T13:00:00Z",
					externalRef: "poi-kinkakuji",
				},
				{
					// Unscheduled step: exercises the classifier's
					// missing-schedule path.
					name:     "Nishiki Market",
					location: "Nishiki Market, Kyoto",
				},
			},
		},
	}
}

// seedTrip inserts a trip and its steps unless a trip with the same name
// already exists for the demo owner.
func seedTrip(ctx context.Context, db *sql.DB, spec tripSpec) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM trips WHERE owner_id = $1 AND name = $2)`,
		DemoOwnerID, spec.name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trip: %w", err)
	}
	if exists {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var tripID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO trips (owner_id, name) VALUES ($1, $2) RETURNING id`,
		DemoOwnerID, spec.name,
	).Scan(&tripID)
	if err != nil {
		return false, fmt.Errorf("insert trip: %w", err)
	}

	for i, step := range spec.steps {
		if err := insertStep(ctx, tx, tripID, i, step); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func insertStep(ctx context.Context, tx *sql.Tx, tripID string, position int, step stepSpec) error {
	start, err := parseStepTime(step.start)
	if err != nil {
		return fmt.Errorf("step %q start: %w", step.name, err)
	}
	end, err := parseStepTime(step.end)
	if err != nil {
		return fmt.Errorf("step %q end: %w", step.name, err)
	}

	var externalRef *string
	if step.externalRef != "" {
		externalRef = &step.externalRef
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trip_steps (trip_id, name, location, start_time, end_time, external_ref, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tripID, step.name, step.location, start, end, externalRef, position,
	)
	if err != nil {
		return fmt.Errorf("insert step %q: %w", step.name, err)
	}
	return nil
}

func parseStepTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil //nolint:nilnil // unscheduled steps carry null timestamps.
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
