package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/shared/models"
	"github.com/tripline/booking-system/shared/saga"
)

// PostgresExecutionJournal persists execution snapshots so operators can
// see where every saga is (or was) without touching the business tables.
type PostgresExecutionJournal struct {
	db *sqlx.DB
}

// NewPostgresExecutionJournal creates a new journal
func NewPostgresExecutionJournal(db *sqlx.DB) *PostgresExecutionJournal {
	return &PostgresExecutionJournal{db: db}
}

var _ saga.Journal = (*PostgresExecutionJournal)(nil)

// postgresExecution represents an execution snapshot in the database
type postgresExecution struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	Name        string    `db:"name"`
	Status      string    `db:"status"`
	CurrentStep int       `db:"current_step"`
	Input       []byte    `db:"input"`
	Results     []byte    `db:"results"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Record upserts the latest snapshot of an execution.
func (j *PostgresExecutionJournal) Record(ctx context.Context, exec *saga.Execution) error {
	input, err := json.Marshal(exec.Input)
	if err != nil {
		return errors.Wrap(err, "failed to marshal execution input")
	}

	results, err := json.Marshal(exec.Results)
	if err != nil {
		return errors.Wrap(err, "failed to marshal execution results")
	}

	query := `
		INSERT INTO executions (
			id, kind, name, status, current_step, input, results,
			created_at, updated_at
		) VALUES (
			:id, :kind, :name, :status, :current_step, :input, :results,
			:created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			status = :status,
			current_step = :current_step,
			results = :results,
			updated_at = :updated_at`

	_, err = j.db.NamedExecContext(ctx, query, &postgresExecution{
		ID:          exec.ID.String(),
		Kind:        string(exec.Kind),
		Name:        exec.Name,
		Status:      string(exec.Status),
		CurrentStep: exec.CurrentStep,
		Input:       input,
		Results:     results,
		CreatedAt:   exec.Timestamps.CreatedAt,
		UpdatedAt:   exec.Timestamps.UpdatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to record execution snapshot")
	}

	return nil
}

// FindByID loads one execution snapshot.
func (j *PostgresExecutionJournal) FindByID(ctx context.Context, id string) (*saga.Execution, error) {
	query := `
		SELECT id, kind, name, status, current_step, input, results,
			   created_at, updated_at
		FROM executions
		WHERE id = $1`

	var row postgresExecution
	if err := j.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, errors.Wrap(err, "failed to find execution")
	}

	return j.toDomain(&row)
}

func (j *PostgresExecutionJournal) toDomain(row *postgresExecution) (*saga.Execution, error) {
	exec := &saga.Execution{
		ID:          models.ID(row.ID),
		Kind:        saga.WorkflowKind(row.Kind),
		Name:        row.Name,
		Status:      saga.ExecutionStatus(row.Status),
		CurrentStep: row.CurrentStep,
	}
	exec.Timestamps.CreatedAt = row.CreatedAt
	exec.Timestamps.UpdatedAt = row.UpdatedAt

	if len(row.Input) > 0 {
		if err := json.Unmarshal(row.Input, &exec.Input); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal execution input")
		}
	}

	if len(row.Results) > 0 {
		if err := json.Unmarshal(row.Results, &exec.Results); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal execution results")
		}
	}

	return exec, nil
}
