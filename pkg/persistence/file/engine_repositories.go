package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

const (
	instancesDir = "instances"
	timersDir    = "timers"
	attemptsDir  = "attempts"
)

// InstanceRepository returns the workflow instance repository.
func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instances
}

// TimerRepository returns the durable timer repository.
func (p *Persistence) TimerRepository() persistence.TimerRepository {
	return p.timers
}

// AttemptRepository returns the activity attempt repository.
func (p *Persistence) AttemptRepository() persistence.AttemptRepository {
	return p.attempts
}

// InstanceRepository stores workflow instances as one JSON document per
// workflow ID.
type InstanceRepository struct {
	store *Persistence
}

func (r *InstanceRepository) GetByID(_ context.Context, workflowID string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance

	found, err := r.store.read(instancesDir, workflowID, &instance)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", workflowID, err)
	}

	if !found {
		return nil, persistence.ErrInstanceNotFound
	}

	return &instance, nil
}

func (r *InstanceRepository) Save(_ context.Context, instance *models.WorkflowInstance) error {
	instance.UpdatedAt = time.Now().UTC()

	err := r.store.write(instancesDir, instance.ID, instance)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) ListRunning(ctx context.Context) ([]*models.WorkflowInstance, error) {
	ids, err := r.store.list(instancesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	running := make([]*models.WorkflowInstance, 0)

	for _, id := range ids {
		instance, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if instance.Status == models.InstanceStatusRunning {
			running = append(running, instance)
		}
	}

	return running, nil
}

func (r *InstanceRepository) Delete(_ context.Context, workflowID string) error {
	return r.store.remove(instancesDir, workflowID)
}

// TimerRepository stores the single pending timer per workflow
// instance, keyed by workflow ID.
type TimerRepository struct {
	store *Persistence
}

func (r *TimerRepository) Save(_ context.Context, timer *models.Timer) error {
	return r.store.write(timersDir, timer.WorkflowID, timer)
}

func (r *TimerRepository) GetByWorkflow(_ context.Context, workflowID string) (*models.Timer, error) {
	var timer models.Timer

	found, err := r.store.read(timersDir, workflowID, &timer)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrTimerNotFound
	}

	return &timer, nil
}

func (r *TimerRepository) DueBefore(ctx context.Context, at time.Time) ([]*models.Timer, error) {
	ids, err := r.store.list(timersDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}

	due := make([]*models.Timer, 0)

	for _, id := range ids {
		timer, err := r.GetByWorkflow(ctx, id)
		if err != nil {
			return nil, err
		}

		if !timer.FireAt.After(at) {
			due = append(due, timer)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })

	return due, nil
}

func (r *TimerRepository) Delete(_ context.Context, workflowID string) error {
	return r.store.remove(timersDir, workflowID)
}

// AttemptRepository stores activity attempts keyed by workflow ID and
// step cursor.
type AttemptRepository struct {
	store *Persistence
}

func attemptKey(workflowID string, stepCursor int) string {
	return fmt.Sprintf("%s-%d", workflowID, stepCursor)
}

func (r *AttemptRepository) Get(_ context.Context, workflowID string, stepCursor int) (*models.ActivityAttempt, error) {
	var attempt models.ActivityAttempt

	found, err := r.store.read(attemptsDir, attemptKey(workflowID, stepCursor), &attempt)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrAttemptNotFound
	}

	return &attempt, nil
}

func (r *AttemptRepository) Save(_ context.Context, attempt *models.ActivityAttempt) error {
	return r.store.write(attemptsDir, attemptKey(attempt.WorkflowID, attempt.StepCursor), attempt)
}

func (r *AttemptRepository) DeleteForWorkflow(_ context.Context, workflowID string) error {
	ids, err := r.store.list(attemptsDir)
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}

	for _, id := range ids {
		var attempt models.ActivityAttempt

		found, err := r.store.read(attemptsDir, id, &attempt)
		if err != nil {
			return err
		}

		if found && attempt.WorkflowID == workflowID {
			err = r.store.remove(attemptsDir, id)
			if err != nil {
				return err
			}
		}
	}

	return nil
}
