// Package handoff delivers finalized briefs to content generation.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/store"
)

// Publisher delivers a brief. Publish is called once per completed consultation.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, b *domain.Brief) error
}

// Discard drops briefs.
type Discard struct{}

func (Discard) Name() string { return "discard" }

func (Discard) Publish(context.Context, *domain.Brief) error { return nil }

// DefaultQueue is the Redis list briefs are pushed to.
const DefaultQueue = "campaign:briefs"

// RedisQueue pushes briefs as JSON onto a Redis list.
type RedisQueue struct {
	client *redis.Client
	queue  string
}

// NewRedisQueue connects to redisURL and verifies the connection.
func NewRedisQueue(ctx context.Context, redisURL, queue string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisQueueClient(client, queue), nil
}

// NewRedisQueueClient wraps an existing client.
func NewRedisQueueClient(client *redis.Client, queue string) *RedisQueue {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisQueue{client: client, queue: queue}
}

func (q *RedisQueue) Name() string { return "redis" }

// Publish appends the brief to the queue.
func (q *RedisQueue) Publish(ctx context.Context, b *domain.Brief) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal brief: %w", err)
	}
	if err := q.client.RPush(ctx, q.queue, payload).Err(); err != nil {
		return fmt.Errorf("push brief %s: %w", b.SessionID, err)
	}
	return nil
}

// Ping checks Redis health.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Archive stores briefs in the SQLite archive.
type Archive struct {
	repo           store.Repository
	withTranscript bool
}

// NewArchive creates an archive publisher.
func NewArchive(repo store.Repository, withTranscript bool) *Archive {
	return &Archive{repo: repo, withTranscript: withTranscript}
}

func (a *Archive) Name() string { return "archive" }

// Publish saves the brief.
func (a *Archive) Publish(ctx context.Context, b *domain.Brief) error {
	return a.repo.SaveBrief(ctx, b, a.withTranscript)
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Name() string { return "multi" }

// Publish tries every publisher even when an earlier one fails.
func (m Multi) Publish(ctx context.Context, b *domain.Brief) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
