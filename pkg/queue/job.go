package queue

import "context"

// Job is a unit of work the queue can schedule and run.
type Job interface {
	// Name identifies the job for registration and logging.
	Name() string

	// Type is the message type this job consumes.
	Type() string

	// Handle processes one payload.
	Handle(ctx context.Context, payload interface{}) error
}
