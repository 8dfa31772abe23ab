/**
 * Asynq Queue Consumer for the PDF extraction worker
 *
 * Alternative intake: each pdf:extract task carries one record as JSON.
 * Stage failures are delivered to the failure list and complete the task;
 * asynq only retries when the delivery itself fails.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/adverant/nexus/pdfextract-worker/internal/stage"
)

// TypeExtract is the asynq task type for one record.
const TypeExtract = "pdf:extract"

// NewExtractTask wraps rec in a task.
func NewExtractTask(rec *flow.Record) (*asynq.Task, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return asynq.NewTask(TypeExtract, payload), nil
}

// Consumer handles task consumption through asynq
type Consumer struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	redis   *redis.Client
	stage   *stage.Stage
	sink    flow.Sink
	lineage LineageRecorder
	config  *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL            string
	QueueName           string
	Concurrency         int
	MaxDeliveryAttempts int
	MaxRecordSize       int64

	Stage   *stage.Stage
	Lineage LineageRecorder // optional
}

// NewConsumer creates a new asynq consumer. Outcomes are delivered into the
// same Redis lists the list consumer uses.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Stage == nil {
		return nil, fmt.Errorf("Stage is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at 60s
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, bytes=%d, error=%v",
					task.Type(), len(task.Payload()), err)
			}),
		},
	)

	c := &Consumer{
		client:  asynq.NewClient(redisOpt),
		server:  server,
		mux:     asynq.NewServeMux(),
		redis:   rdb,
		stage:   cfg.Stage,
		sink:    NewRedisSink(rdb, cfg.QueueName),
		lineage: cfg.Lineage,
		config:  cfg,
	}
	c.mux.HandleFunc(TypeExtract, c.handleExtract)

	return c, nil
}

// Start starts the asynq server in the background
func (c *Consumer) Start() error {
	log.Printf("Starting asynq consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the consumer gracefully
func (c *Consumer) Stop() error {
	log.Printf("Stopping asynq consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	if err := c.redis.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}

	log.Printf("Asynq consumer stopped")
	return nil
}

// Enqueue submits rec as a task on the configured queue.
func (c *Consumer) Enqueue(ctx context.Context, rec *flow.Record) error {
	task, err := NewExtractTask(rec)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.Queue(c.config.QueueName)}
	if c.config.MaxDeliveryAttempts > 0 {
		opts = append(opts, asynq.MaxRetry(c.config.MaxDeliveryAttempts))
	}

	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// handleExtract runs one record through the stage and delivers the outcome.
func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	var rec flow.Record
	if err := json.Unmarshal(task.Payload(), &rec); err != nil {
		return fmt.Errorf("failed to unmarshal record: %v: %w", err, asynq.SkipRetry)
	}
	if rec.ID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			rec.ID = id
		}
	}

	logf(rec.ID, "Processing task (%d bytes)", len(rec.Content))
	inv := invoke(c.stage, &rec, c.config.MaxRecordSize)

	if err := deliver(ctx, c.sink, c.lineage, &rec, inv); err != nil {
		return fmt.Errorf("failed to deliver record %s: %w", rec.ID, err)
	}

	logf(rec.ID, "Delivered: status=%s, outputs=%d, duration=%v",
		inv.outcome.Status, len(inv.outcome.Outputs), inv.outcome.Duration)
	return nil
}
