package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the publish-side surface handed to components that
// only schedule work.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error

	// PublishMessageIn delivers the message after the given delay.
	PublishMessageIn(ctx context.Context, msgType string, payload interface{}, delay time.Duration) error
}

// Queue is the runnable surface the application wires: publish plus job
// registration and lifecycle.
type Queue interface {
	QueueService
	RegisterJob(job Job)
	RegisterJobs(jobs []Job)
	Start() error
	Stop(ctx context.Context) error
}

// QueueConfig tunes the worker pool and retry policy.
type QueueConfig struct {
	Workers    int
	QueueSize  int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the envelope a queue carries.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload coerces a queue payload into *T. Payloads arrive either
// as the original value (memory queue) or as decoded JSON (Redis), so
// both shapes are handled.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &out, nil
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("remarshal payload: %w", err)
		}
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
