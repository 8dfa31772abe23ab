/**
 * Direct Redis Queue Consumer for the PDF extraction worker
 *
 * Producers write the record JSON to <queue>:data and LPUSH its ID on <queue>.
 * Workers BRPOP an ID, run the stage, and deliver the outcome through the
 * RedisSink. A failed delivery re-queues the ID until MaxDeliveryAttempts.
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/adverant/nexus/pdfextract-worker/internal/stage"
)

var errNoRecords = errors.New("no records available")

// RedisConsumer handles record consumption from a Redis list queue
type RedisConsumer struct {
	client  *redis.Client
	stage   *stage.Stage
	sink    flow.Sink
	lineage LineageRecorder
	config  *RedisConsumerConfig
	keys    keys

	cancel context.CancelFunc
	group  *errgroup.Group
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL            string
	QueueName           string
	Concurrency         int
	MaxDeliveryAttempts int
	MaxRecordSize       int64
	PopTimeout          time.Duration

	Stage   *stage.Stage
	Lineage LineageRecorder // optional

	// Sink overrides the Redis delivery; nil uses a RedisSink on the same queue.
	Sink flow.Sink
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "pdfextract:records"
	}

	if cfg.Stage == nil {
		return nil, fmt.Errorf("Stage is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = 3
	}

	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NewRedisSink(client, cfg.QueueName)
	}

	return &RedisConsumer{
		client:  client,
		stage:   cfg.Stage,
		sink:    sink,
		lineage: cfg.Lineage,
		config:  cfg,
		keys:    keys{queue: cfg.QueueName},
	}, nil
}

// Start launches the worker goroutines. They run until Stop or until ctx ends.
func (c *RedisConsumer) Start(ctx context.Context) {
	log.Printf("Starting Redis queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	ctx, c.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.config.Concurrency; i++ {
		id := i
		g.Go(func() error {
			c.worker(gctx, id)
			return nil
		})
	}
	c.group = g

	log.Println("Queue consumer started successfully")
}

// Stop gracefully stops the consumer: in-flight records finish first.
func (c *RedisConsumer) Stop() error {
	log.Println("Stopping queue consumer...")
	if c.cancel != nil {
		c.cancel()
	}
	if c.group != nil {
		if err := c.group.Wait(); err != nil {
			log.Printf("Worker group exited with error: %v", err)
		}
	}
	return c.client.Close()
}

// worker is a goroutine that processes records
func (c *RedisConsumer) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)

	for {
		if ctx.Err() != nil {
			log.Printf("Worker %d stopping", id)
			return
		}

		if err := c.processNext(ctx); err != nil {
			if errors.Is(err, errNoRecords) || ctx.Err() != nil {
				continue
			}
			log.Printf("Worker %d error: %v", id, err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// processNext pops one record ID and runs it through the stage.
func (c *RedisConsumer) processNext(ctx context.Context) error {
	result, err := c.client.BRPop(ctx, c.config.PopTimeout, c.keys.pending()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errNoRecords
		}
		return fmt.Errorf("failed to fetch record: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid pop result")
	}
	id := result[1]

	// Delivery outlives a shutdown request so a popped record is never half-done.
	work := context.WithoutCancel(ctx)

	if err := c.client.SAdd(work, c.keys.processing(), id).Err(); err != nil {
		logf(id, "Warning: failed to mark as processing: %v", err)
	}

	raw, err := c.client.HGet(work, c.keys.data(), id).Result()
	if err != nil {
		c.client.SRem(work, c.keys.processing(), id)
		if errors.Is(err, redis.Nil) {
			logf(id, "No record data found, skipping")
			return nil
		}
		return fmt.Errorf("failed to get record data: %w", err)
	}

	var rec flow.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logf(id, "Malformed record JSON, moving to failure: %v", err)
		return c.reject(work, id, raw)
	}
	if rec.ID == "" {
		rec.ID = id
	}

	logf(id, "Processing record (%d bytes)", len(rec.Content))
	inv := invoke(c.stage, &rec, c.config.MaxRecordSize)

	if err := deliver(work, c.sink, c.lineage, &rec, inv); err != nil {
		return c.retry(work, id, err)
	}

	logf(id, "Delivered: status=%s, outputs=%d, duration=%v",
		inv.outcome.Status, len(inv.outcome.Outputs), inv.outcome.Duration)
	return nil
}

// retry re-queues id after a failed delivery, up to MaxDeliveryAttempts.
// Past that the record stays in the data hash for inspection.
func (c *RedisConsumer) retry(ctx context.Context, id string, cause error) error {
	attempts, err := c.client.HIncrBy(ctx, c.keys.attempts(), id, 1).Result()
	if err != nil {
		return fmt.Errorf("failed to count delivery attempt: %w (delivery: %v)", err, cause)
	}

	c.client.SRem(ctx, c.keys.processing(), id)

	if int(attempts) < c.config.MaxDeliveryAttempts {
		if err := c.client.LPush(ctx, c.keys.pending(), id).Err(); err != nil {
			return fmt.Errorf("failed to re-queue record %s: %w", id, err)
		}
		logf(id, "Delivery failed, re-queued (attempt %d/%d): %v", attempts, c.config.MaxDeliveryAttempts, cause)
		return nil
	}

	return apperrors.NewDeliveryFailedError(id, int(attempts), cause)
}

// reject moves undecodable JSON straight to the failure list.
func (c *RedisConsumer) reject(ctx context.Context, id, raw string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, c.keys.relationship(flow.RelFailure), raw)
		pipe.HDel(ctx, c.keys.data(), id)
		pipe.SRem(ctx, c.keys.processing(), id)
		pipe.HIncrBy(ctx, c.keys.stats(), "failed", 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reject record %s: %w", id, err)
	}
	return nil
}

// Enqueue stores rec and pushes its ID in one transaction. An empty ID is
// replaced with a fresh UUID, which is returned.
func (c *RedisConsumer) Enqueue(ctx context.Context, rec *flow.Record) (string, error) {
	return enqueue(ctx, c.client, c.keys, rec)
}

func enqueue(ctx context.Context, client *redis.Client, k keys, rec *flow.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k.data(), rec.ID, data)
		pipe.LPush(ctx, k.pending(), rec.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue record: %w", err)
	}

	return rec.ID, nil
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Waiting    int64 `json:"waiting"`
	Processing int64 `json:"processing"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Outputs    int64 `json:"outputs"`
}

// Stats returns queue statistics
func (c *RedisConsumer) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	waiting, err := c.client.LLen(ctx, c.keys.pending()).Result()
	if err != nil {
		return s, fmt.Errorf("failed to read queue length: %w", err)
	}
	processing, err := c.client.SCard(ctx, c.keys.processing()).Result()
	if err != nil {
		return s, fmt.Errorf("failed to read processing set: %w", err)
	}
	counters, err := c.client.HGetAll(ctx, c.keys.stats()).Result()
	if err != nil {
		return s, fmt.Errorf("failed to read counters: %w", err)
	}

	s.Waiting = waiting
	s.Processing = processing
	s.Succeeded, _ = strconv.ParseInt(counters["succeeded"], 10, 64)
	s.Failed, _ = strconv.ParseInt(counters["failed"], 10, 64)
	s.Outputs, _ = strconv.ParseInt(counters["outputs"], 10, 64)
	return s, nil
}
