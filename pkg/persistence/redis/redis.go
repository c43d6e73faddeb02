// Package redis provides Redis-backed persistence for workflow
// instances, timers, activity attempts and CRM records. Each record is
// stored as one JSON document in a per-entity hash; timers additionally
// maintain a sorted set indexed by fire time for due queries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "outfield:"

// Persistence implements the persistence.Persistence interface on top
// of a Redis server.
type Persistence struct {
	client *redis.Client

	instances   *InstanceRepository
	timers      *TimerRepository
	attempts    *AttemptRepository
	meetings    *MeetingRepository
	enrollments *EnrollmentRepository
	campaigns   *CampaignRepository
	policies    *PolicyRepository
	calendar    *CalendarRepository
	tenants     *TenantRepository
}

// NewPersistence connects to Redis using a redis:// URL and verifies
// the connection.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	p := &Persistence{client: client}
	p.instances = &InstanceRepository{store: p}
	p.timers = &TimerRepository{store: p}
	p.attempts = &AttemptRepository{store: p}
	p.meetings = &MeetingRepository{store: p}
	p.enrollments = &EnrollmentRepository{store: p}
	p.campaigns = &CampaignRepository{store: p}
	p.policies = &PolicyRepository{store: p}
	p.calendar = &CalendarRepository{store: p}
	p.tenants = &TenantRepository{store: p}

	return p, nil
}

// HealthCheck verifies the Redis connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// Close closes the Redis client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

func collectionKey(collection string) string {
	return keyPrefix + collection
}

func (p *Persistence) write(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}

	err = p.client.HSet(ctx, collectionKey(collection), id, data).Err()
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}

	return nil
}

// read loads one record; it returns false without error when the
// record does not exist.
func (p *Persistence) read(ctx context.Context, collection, id string, v any) (bool, error) {
	data, err := p.client.HGet(ctx, collectionKey(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
	}

	return true, nil
}

// readAll unmarshals every record of a collection into values produced
// by decode. Collections are expected to stay small enough for a full
// hash read per query.
func readAll[T any](ctx context.Context, p *Persistence, collection string) ([]*T, error) {
	entries, err := p.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	records := make([]*T, 0, len(entries))

	for id, data := range entries {
		record := new(T)

		err := json.Unmarshal([]byte(data), record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
		}

		records = append(records, record)
	}

	return records, nil
}

func (p *Persistence) remove(ctx context.Context, collection, id string) error {
	err := p.client.HDel(ctx, collectionKey(collection), id).Err()
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	return nil
}
