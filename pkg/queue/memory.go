package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FxPulse/pkg/logger"
)

// MemoryQueue is the in-process queue used when no Redis is configured. It
// mirrors the RedisQueue surface: registered jobs, worker pool, bounded
// retries, delayed delivery.
type MemoryQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	jobs      map[string]Job
	msgCh     chan Message
	timers    []*time.Timer
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewMemoryQueue creates an in-process queue.
func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		msgCh:  make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJobs registers multiple jobs.
func (q *MemoryQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		q.RegisterJob(job)
	}
}

// RegisterJob registers a single job.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start launches the worker pool.
func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels pending timers and waits for the workers.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	for _, t := range q.timers {
		t.Stop()
	}
	q.timers = nil
	q.cancel()
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		q.logger.Info("memory queue stopped gracefully")
		return nil
	}
}

// Enqueue adds a message for immediate processing.
func (q *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return fmt.Errorf("queue not running")
	}
	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg := Message{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	select {
	case q.msgCh <- msg:
		return nil
	default:
		return fmt.Errorf("queue full")
	}
}

// EnqueueIn schedules a message for delivery after the delay.
func (q *MemoryQueue) EnqueueIn(ctx context.Context, msgType string, payload interface{}, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, msgType, payload)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return fmt.Errorf("queue not running")
	}
	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		if err := q.Enqueue(context.Background(), msgType, payload); err != nil {
			q.logger.Warn("delayed enqueue failed",
				logger.String("type", msgType), logger.Error(err))
		}
		q.dropTimer(timer)
	})
	q.timers = append(q.timers, timer)
	return nil
}

// PublishMessage publishes a message (implements QueueService).
func (q *MemoryQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(ctx, msgType, payload)
}

// PublishMessageIn publishes a message with a delivery delay.
func (q *MemoryQueue) PublishMessageIn(ctx context.Context, msgType string, payload interface{}, delay time.Duration) error {
	return q.EnqueueIn(ctx, msgType, payload, delay)
}

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	q.logger.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case msg := <-q.msgCh:
			q.processMessage(msg)
		}
	}
}

func (q *MemoryQueue) processMessage(msg Message) {
	q.mu.RLock()
	job, exists := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !exists {
		q.logger.Error("no job found",
			logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	err := job.Handle(q.ctx, msg.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("max retries reached, dropping message",
			logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}
	msg.Attempts++
	retry := msg
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(q.config.RetryDelay, func() {
		select {
		case q.msgCh <- retry:
		default:
			q.logger.Error("retry dropped, queue full", logger.String("id", retry.ID))
		}
		q.dropTimer(timer)
	})
	q.timers = append(q.timers, timer)
	q.mu.Unlock()
}

func (q *MemoryQueue) dropTimer(timer *time.Timer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.timers {
		if t == timer {
			q.timers = append(q.timers[:i], q.timers[i+1:]...)
			return
		}
	}
}

var _ Queue = (*MemoryQueue)(nil)
