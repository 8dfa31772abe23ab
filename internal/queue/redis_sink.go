/**
 * Redis delivery for stage invocations
 *
 * One invocation is delivered in a single MULTI/EXEC transaction: every
 * staged record is pushed to its relationship list, the input leaves the
 * pending hash and the processing set, counters move, and one event is
 * published. Either all of it happens or none of it does.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/redis/go-redis/v9"
)

// keys names every Redis key that belongs to one queue.
type keys struct {
	queue string
}

func (k keys) pending() string    { return k.queue }
func (k keys) data() string       { return k.queue + ":data" }
func (k keys) processing() string { return k.queue + ":processing" }
func (k keys) stats() string      { return k.queue + ":stats" }
func (k keys) attempts() string   { return k.queue + ":attempts" }
func (k keys) events() string     { return k.queue + ":events" }

func (k keys) relationship(rel flow.Relationship) string {
	return fmt.Sprintf("%s:%s", k.queue, rel)
}

// Event is published on the events channel once per delivered invocation.
type Event struct {
	Event     string `json:"event"`
	RecordID  string `json:"recordId"`
	Outputs   int    `json:"outputs"`
	Timestamp string `json:"timestamp"`
}

// RedisSink delivers invocations into the relationship lists of a queue.
type RedisSink struct {
	client *redis.Client
	keys   keys
}

// NewRedisSink creates a sink writing under queueName.
func NewRedisSink(client *redis.Client, queueName string) *RedisSink {
	return &RedisSink{client: client, keys: keys{queue: queueName}}
}

// Deliver implements flow.Sink.
func (s *RedisSink) Deliver(ctx context.Context, input *flow.Record, transfers []flow.Transfer) error {
	type push struct {
		key  string
		data []byte
	}

	pushes := make([]push, 0, len(transfers))
	outputs, failed := 0, false
	for _, t := range transfers {
		data, err := json.Marshal(t.Record)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", t.Record.ID, err)
		}
		pushes = append(pushes, push{key: s.keys.relationship(t.Relationship), data: data})

		switch t.Relationship {
		case flow.RelSuccess:
			outputs++
		case flow.RelFailure:
			failed = true
		}
	}

	event := Event{Event: "record:succeeded", Outputs: outputs, Timestamp: time.Now().Format(time.RFC3339)}
	counter := "succeeded"
	if failed {
		event.Event = "record:failed"
		counter = "failed"
	}
	if input != nil {
		event.RecordID = input.ID
	}
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range pushes {
			pipe.RPush(ctx, p.key, p.data)
		}
		if input != nil {
			pipe.HDel(ctx, s.keys.data(), input.ID)
			pipe.HDel(ctx, s.keys.attempts(), input.ID)
			pipe.SRem(ctx, s.keys.processing(), input.ID)
		}
		pipe.HIncrBy(ctx, s.keys.stats(), counter, 1)
		pipe.HIncrBy(ctx, s.keys.stats(), "outputs", int64(outputs))
		pipe.Publish(ctx, s.keys.events(), eventData)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delivery transaction failed: %w", err)
	}

	return nil
}

// logf logs in the per-record register used across the transport.
func logf(recordID, format string, args ...interface{}) {
	log.Printf("[Record %s] %s", recordID, fmt.Sprintf(format, args...))
}
