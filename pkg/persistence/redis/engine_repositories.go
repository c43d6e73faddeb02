package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

const (
	instancesCollection = "instances"
	timersCollection    = "timers"
	attemptsCollection  = "attempts"

	timersByFireAtKey = keyPrefix + "timers:by_fire_at"
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

func (r *InstanceRepository) GetByID(ctx context.Context, workflowID string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance

	found, err := r.store.read(ctx, instancesCollection, workflowID, &instance)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", workflowID, err)
	}

	if !found {
		return nil, persistence.ErrInstanceNotFound
	}

	return &instance, nil
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	instance.UpdatedAt = time.Now().UTC()

	err := r.store.write(ctx, instancesCollection, instance.ID, instance)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) ListRunning(ctx context.Context) ([]*models.WorkflowInstance, error) {
	instances, err := readAll[models.WorkflowInstance](ctx, r.store, instancesCollection)
	if err != nil {
		return nil, err
	}

	running := make([]*models.WorkflowInstance, 0)

	for _, instance := range instances {
		if instance.Status == models.InstanceStatusRunning {
			running = append(running, instance)
		}
	}

	sort.Slice(running, func(i, j int) bool { return running[i].CreatedAt.Before(running[j].CreatedAt) })

	return running, nil
}

func (r *InstanceRepository) Delete(ctx context.Context, workflowID string) error {
	return r.store.remove(ctx, instancesCollection, workflowID)
}

// TimerRepository stores the single pending timer per workflow
// instance. A sorted set keyed by fire time serves the due query.
type TimerRepository struct {
	store *Persistence
}

func (r *TimerRepository) Save(ctx context.Context, timer *models.Timer) error {
	err := r.store.write(ctx, timersCollection, timer.WorkflowID, timer)
	if err != nil {
		return err
	}

	err = r.store.client.ZAdd(ctx, timersByFireAtKey, redis.Z{
		Score:  float64(timer.FireAt.UnixMilli()),
		Member: timer.WorkflowID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index timer for %s: %w", timer.WorkflowID, err)
	}

	return nil
}

func (r *TimerRepository) GetByWorkflow(ctx context.Context, workflowID string) (*models.Timer, error) {
	var timer models.Timer

	found, err := r.store.read(ctx, timersCollection, workflowID, &timer)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrTimerNotFound
	}

	return &timer, nil
}

func (r *TimerRepository) DueBefore(ctx context.Context, at time.Time) ([]*models.Timer, error) {
	ids, err := r.store.client.ZRangeByScore(ctx, timersByFireAtKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(at.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query due timers: %w", err)
	}

	due := make([]*models.Timer, 0, len(ids))

	for _, id := range ids {
		timer, err := r.GetByWorkflow(ctx, id)
		if err != nil {
			return nil, err
		}

		due = append(due, timer)
	}

	return due, nil
}

func (r *TimerRepository) Delete(ctx context.Context, workflowID string) error {
	err := r.store.client.ZRem(ctx, timersByFireAtKey, workflowID).Err()
	if err != nil {
		return fmt.Errorf("failed to unindex timer for %s: %w", workflowID, err)
	}

	return r.store.remove(ctx, timersCollection, workflowID)
}

// AttemptRepository stores activity attempts keyed by workflow ID and
// step cursor.
type AttemptRepository struct {
	store *Persistence
}

func attemptKey(workflowID string, stepCursor int) string {
	return fmt.Sprintf("%s-%d", workflowID, stepCursor)
}

func (r *AttemptRepository) Get(ctx context.Context, workflowID string, stepCursor int) (*models.ActivityAttempt, error) {
	var attempt models.ActivityAttempt

	found, err := r.store.read(ctx, attemptsCollection, attemptKey(workflowID, stepCursor), &attempt)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrAttemptNotFound
	}

	return &attempt, nil
}

func (r *AttemptRepository) Save(ctx context.Context, attempt *models.ActivityAttempt) error {
	return r.store.write(ctx, attemptsCollection, attemptKey(attempt.WorkflowID, attempt.StepCursor), attempt)
}

func (r *AttemptRepository) DeleteForWorkflow(ctx context.Context, workflowID string) error {
	attempts, err := readAll[models.ActivityAttempt](ctx, r.store, attemptsCollection)
	if err != nil {
		return err
	}

	for _, attempt := range attempts {
		if attempt.WorkflowID != workflowID {
			continue
		}

		err = r.store.remove(ctx, attemptsCollection, attemptKey(attempt.WorkflowID, attempt.StepCursor))
		if err != nil {
			return err
		}
	}

	return nil
}
