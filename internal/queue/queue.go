// Package queue is a Redis-backed job queue with at-least-once delivery.
// Ready jobs sit on a list consumed with BRPOP; failed jobs wait on a sorted
// set scored by their retry time and are promoted back onto the list.
package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"examcraft/internal/domain"
	"examcraft/internal/util"
)

const (
	readyKey   = "examcraft:queue:ready"
	delayedKey = "examcraft:queue:delayed"
)

// Job is the wire envelope carried through Redis.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
}

// RedisQueue implements domain.JobQueue.
type RedisQueue struct {
	client      redis.UniversalClient
	maxAttempts int
}

func NewRedisQueue(client redis.UniversalClient, maxAttempts int) *RedisQueue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RedisQueue{client: client, maxAttempts: maxAttempts}
}

// Enqueue pushes a job onto the ready list. The payload is serialized once
// here; handlers decode it back into their typed payload struct.
func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.NewInternalError("failed to encode job payload", err)
	}
	job := Job{
		ID:          util.NewULID(),
		Name:        name,
		Data:        data,
		Attempt:     1,
		MaxAttempts: q.maxAttempts,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return domain.NewInternalError("failed to encode job", err)
	}
	if err := q.client.LPush(ctx, readyKey, raw).Err(); err != nil {
		return domain.NewInternalError("failed to enqueue job", err)
	}
	return nil
}

// Retry schedules the job to run again after delay, with its attempt counter
// bumped. Used by the worker when a handler fails and attempts remain.
func (q *RedisQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return domain.NewInternalError("failed to encode job", err)
	}
	member := redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: raw,
	}
	if err := q.client.ZAdd(ctx, delayedKey, member).Err(); err != nil {
		return domain.NewInternalError("failed to schedule retry", err)
	}
	return nil
}

// Dequeue blocks up to timeout waiting for a ready job. A nil job with a nil
// error means the wait timed out.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, readyKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, domain.NewInternalError("failed to dequeue job", err)
	}
	// BRPOP returns [key, value]
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, domain.NewInternalError("failed to decode job", err)
	}
	return &job, nil
}

// PromoteDelayed moves every due delayed job back onto the ready list.
func (q *RedisQueue) PromoteDelayed(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(now, 'f', 0, 64),
	}).Result()
	if err != nil {
		return domain.NewInternalError("failed to read delayed jobs", err)
	}
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, delayedKey, raw).Result()
		if err != nil {
			return domain.NewInternalError("failed to claim delayed job", err)
		}
		// Another worker claimed it first.
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, readyKey, raw).Err(); err != nil {
			return domain.NewInternalError("failed to promote delayed job", err)
		}
	}
	return nil
}
