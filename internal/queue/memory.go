package queue

import (
	"context"
	"errors"
	"sync"
)

const defaultMemoryCapacity = 256

var ErrQueueFull = errors.New("job queue full")

// Memory is the single-process queue: a buffered channel drained by the
// inline worker pool. Submit never blocks; when the buffer is full the
// job is rejected so audio ingestion is never stalled by a slow worker.
type Memory struct {
	jobs chan Job

	mu     sync.Mutex
	closed bool
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{jobs: make(chan Job, capacity)}
}

func (q *Memory) Submit(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("job queue closed")
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Memory) Consume(ctx context.Context, fn Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-q.jobs:
			if !ok {
				return nil
			}
			fn(ctx, job)
		}
	}
}

func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.jobs)
	return nil
}

// Pending reports buffered jobs not yet picked up by a worker.
func (q *Memory) Pending() int {
	return len(q.jobs)
}
