// Package audit keeps an append-only SQLite record of every agent cycle and
// every action it executed.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/database"
	"github.com/rs/zerolog"
)

// Cycle is one finished invocation of the control loop
type Cycle struct {
	RunID               string
	StartedAt           time.Time
	Duration            time.Duration
	Steps               int
	LastAction          string
	DryRun              bool
	ObservationFailures int
	Reflection          string
}

// Action is one executed (or skipped) plan
type Action struct {
	RunID      string
	Step       int
	ActionType string
	Target     string
	Confidence float64
	Result     string
	Failed     bool
	Skipped    bool
	CreatedAt  time.Time
}

// Repository persists cycles and actions.
// Database: audit.db (cycles, actions tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "audit").Logger(),
	}
}

// RecordAction appends an executed action
func (r *Repository) RecordAction(ctx context.Context, a Action) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO actions
		(run_id, step, action_type, target, confidence, result, failed, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.RunID,
		a.Step,
		a.ActionType,
		a.Target,
		a.Confidence,
		a.Result,
		boolToInt(a.Failed),
		boolToInt(a.Skipped),
		a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// RecordCycle appends a finished cycle. Run IDs are unique; recording the
// same run twice is an error.
func (r *Repository) RecordCycle(ctx context.Context, c Cycle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles
		(run_id, started_at, duration_ms, steps, last_action, dry_run, observation_failures, reflection)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.RunID,
		c.StartedAt.Unix(),
		c.Duration.Milliseconds(),
		c.Steps,
		c.LastAction,
		boolToInt(c.DryRun),
		c.ObservationFailures,
		c.Reflection,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle %s: %w", c.RunID, err)
	}
	r.log.Debug().Str("run_id", c.RunID).Int("steps", c.Steps).Msg("Cycle recorded")
	return nil
}

// RecentCycles returns up to limit cycles, newest first
func (r *Repository) RecentCycles(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, started_at, duration_ms, steps, last_action, dry_run, observation_failures, reflection
		FROM cycles
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		var startedAt, durationMS int64
		var dryRun int
		if err := rows.Scan(&c.RunID, &startedAt, &durationMS, &c.Steps, &c.LastAction, &dryRun, &c.ObservationFailures, &c.Reflection); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.StartedAt = time.Unix(startedAt, 0).UTC()
		c.Duration = time.Duration(durationMS) * time.Millisecond
		c.DryRun = dryRun != 0
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycles: %w", err)
	}
	return cycles, nil
}

// ActionsForRun returns the actions of one run in step order
func (r *Repository) ActionsForRun(ctx context.Context, runID string) ([]Action, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, step, action_type, target, confidence, result, failed, skipped, created_at
		FROM actions
		WHERE run_id = ?
		ORDER BY step ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var failed, skipped int
		var createdAt int64
		if err := rows.Scan(&a.RunID, &a.Step, &a.ActionType, &a.Target, &a.Confidence, &a.Result, &failed, &skipped, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Failed = failed != 0
		a.Skipped = skipped != 0
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}
	return actions, nil
}

// Open opens and migrates the audit database at path
func Open(path string) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileLedger,
		Name:    "audit",
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return db, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
