// Package queue holds accepted import jobs until a worker picks them up.
package queue

import (
	"context"
	"sync"

	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/pkg/metrics"
)

const defaultQueueCapacity = 1_024

// Job is the payload flowing through the queue.
type Job = model.ImportJob

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a job. It returns ErrFull or ErrClosed without blocking.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns the channel workers receive jobs from. It is closed
	// once the queue is closed and drained.
	Dequeue() <-chan Job

	// Len returns the number of waiting jobs.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting jobs.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}
	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		return ErrFull
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len() int {
	n := len(q.jobs)
	metrics.UpdateQueueSize(n)
	return n
}

// Cap implements Queue.Cap.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close implements Queue.Close. Jobs already queued stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}
