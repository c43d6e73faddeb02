package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

// InstanceRepository stores workflow instances in PostgreSQL.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const instanceColumns = `
	id
  , definition_type
  , status
  , phase
  , input
  , state
  , history_cursor
  , signal_queue
  , waiting
  , failure_reason
  , created_at
  , updated_at
  , completed_at
`

func (r *InstanceRepository) GetByID(ctx context.Context, workflowID string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = $1`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, workflowID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrInstanceNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
	}

	return instance, nil
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	instance.UpdatedAt = time.Now().UTC()

	signalQueue, err := json.Marshal(instance.SignalQueue)
	if err != nil {
		return fmt.Errorf("failed to marshal signal queue: %w", err)
	}

	var waiting []byte

	if instance.Waiting != nil {
		waiting, err = json.Marshal(instance.Waiting)
		if err != nil {
			return fmt.Errorf("failed to marshal wait state: %w", err)
		}
	}

	query := `
		INSERT INTO workflow_instances (
			id, definition_type, status, phase, input, state, history_cursor,
			signal_queue, waiting, failure_reason, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			definition_type = EXCLUDED.definition_type,
			status = EXCLUDED.status,
			phase = EXCLUDED.phase,
			input = EXCLUDED.input,
			state = EXCLUDED.state,
			history_cursor = EXCLUDED.history_cursor,
			signal_queue = EXCLUDED.signal_queue,
			waiting = EXCLUDED.waiting,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.DefinitionType,
		instance.Status,
		instance.Phase,
		nullableJSON(instance.Input),
		nullableJSON(instance.State),
		instance.HistoryCursor,
		signalQueue,
		nullableJSON(waiting),
		instance.FailureReason,
		instance.CreatedAt,
		instance.UpdatedAt,
		nullableTime(instance.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow instance: %w", err)
	}

	return nil
}

func (r *InstanceRepository) ListRunning(ctx context.Context) ([]*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE status = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, models.InstanceStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to query running instances: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow instances: %w", err)
	}

	return instances, nil
}

func (r *InstanceRepository) Delete(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM workflow_instances WHERE id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow instance: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		instance    models.WorkflowInstance
		input       []byte
		state       []byte
		signalQueue []byte
		waiting     []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&instance.ID,
		&instance.DefinitionType,
		&instance.Status,
		&instance.Phase,
		&input,
		&state,
		&instance.HistoryCursor,
		&signalQueue,
		&waiting,
		&instance.FailureReason,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.Input = input
	instance.State = state

	if len(signalQueue) > 0 {
		if err := json.Unmarshal(signalQueue, &instance.SignalQueue); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signal queue: %w", err)
		}
	}

	if len(waiting) > 0 {
		instance.Waiting = &models.WaitState{}
		if err := json.Unmarshal(waiting, instance.Waiting); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wait state: %w", err)
		}
	}

	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}

	return &instance, nil
}

// TimerRepository stores at most one pending timer per instance.
type TimerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *TimerRepository) Save(ctx context.Context, timer *models.Timer) error {
	query := `
		INSERT INTO workflow_timers (workflow_id, fire_at, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_id) DO UPDATE SET
			fire_at = EXCLUDED.fire_at,
			reason = EXCLUDED.reason
	`

	_, err := r.db.ExecContext(ctx, query, timer.WorkflowID, timer.FireAt, timer.Reason)
	if err != nil {
		return fmt.Errorf("failed to save timer: %w", err)
	}

	return nil
}

func (r *TimerRepository) GetByWorkflow(ctx context.Context, workflowID string) (*models.Timer, error) {
	query := `SELECT workflow_id, fire_at, reason FROM workflow_timers WHERE workflow_id = $1`

	var timer models.Timer

	err := r.db.QueryRowContext(ctx, query, workflowID).Scan(&timer.WorkflowID, &timer.FireAt, &timer.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrTimerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan timer: %w", err)
	}

	return &timer, nil
}

func (r *TimerRepository) DueBefore(ctx context.Context, at time.Time) ([]*models.Timer, error) {
	query := `SELECT workflow_id, fire_at, reason FROM workflow_timers WHERE fire_at <= $1 ORDER BY fire_at`

	rows, err := r.db.QueryContext(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("failed to query due timers: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	timers := make([]*models.Timer, 0)

	for rows.Next() {
		var timer models.Timer

		if err := rows.Scan(&timer.WorkflowID, &timer.FireAt, &timer.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}

		timers = append(timers, &timer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timers: %w", err)
	}

	return timers, nil
}

func (r *TimerRepository) Delete(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM workflow_timers WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete timer: %w", err)
	}

	return nil
}

// AttemptRepository records activity executions keyed by
// (workflow_id, step_cursor).
type AttemptRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AttemptRepository) Get(ctx context.Context, workflowID string, stepCursor int) (*models.ActivityAttempt, error) {
	query := `
		SELECT id, workflow_id, step_cursor, activity_name, attempt_number,
		       outcome, result, error, started_at, finished_at
		FROM activity_attempts
		WHERE workflow_id = $1 AND step_cursor = $2
	`

	var (
		attempt models.ActivityAttempt
		result  []byte
	)

	err := r.db.QueryRowContext(ctx, query, workflowID, stepCursor).Scan(
		&attempt.ID,
		&attempt.WorkflowID,
		&attempt.StepCursor,
		&attempt.ActivityName,
		&attempt.AttemptNumber,
		&attempt.Outcome,
		&result,
		&attempt.Error,
		&attempt.StartedAt,
		&attempt.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrAttemptNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan activity attempt: %w", err)
	}

	attempt.Result = result

	return &attempt, nil
}

func (r *AttemptRepository) Save(ctx context.Context, attempt *models.ActivityAttempt) error {
	query := `
		INSERT INTO activity_attempts (
			id, workflow_id, step_cursor, activity_name, attempt_number,
			outcome, result, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (workflow_id, step_cursor) DO UPDATE SET
			activity_name = EXCLUDED.activity_name,
			attempt_number = EXCLUDED.attempt_number,
			outcome = EXCLUDED.outcome,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.WorkflowID,
		attempt.StepCursor,
		attempt.ActivityName,
		attempt.AttemptNumber,
		attempt.Outcome,
		nullableJSON(attempt.Result),
		attempt.Error,
		attempt.StartedAt,
		attempt.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity attempt: %w", err)
	}

	return nil
}

func (r *AttemptRepository) DeleteForWorkflow(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM activity_attempts WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete activity attempts: %w", err)
	}

	return nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}

	return data
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func closeRows(ctx context.Context, rows *sql.Rows, logger *slog.Logger) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
