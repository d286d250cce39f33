// Package queue holds ranking jobs between the HTTP layer and the workers.
//
// The in-memory implementation is a bounded channel. A full queue rejects
// immediately so that callers can shed load instead of piling up.
package queue

import (
	"context"
	"sync"

	"github.com/okian/feedrank/pkg/metrics"
)

const (
	defaultQueueCapacity = 1024
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It fails with ErrQueueFull or ErrQueueClosed
	// instead of waiting.
	Enqueue(ctx context.Context, j *Job) error

	// Dequeue returns a channel that receives jobs as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan *Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Jobs already queued can still be dequeued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan *Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan *Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)

	return q
}

// Capacity returns the maximum number of queued jobs.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j *Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		q.reject("context_cancelled")
		return err
	}
	if len(q.jobs) >= q.capacity {
		q.reject("capacity_exceeded")
		return ErrQueueFull
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		q.reject("queue_full")
		return ErrQueueFull
	}
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueRejected(reason)
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) observe() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Dequeue returns a channel that will receive jobs as they become available.
// A job taken off the queue after ctx is done is completed with ctx's error so
// its caller is not left waiting.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan *Job {
	out := make(chan *Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.RecordQueueDequeue()
				metrics.RecordQueueWait(metrics.SinceMs(j.Enqueued))
				q.observe()
			case <-ctx.Done():
				j.Fail(ctx.Err())
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.observe()
}

// Close stops the queue from accepting jobs.
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

// Drain fails every job still waiting in a closed queue with err and reports
// how many there were. An open queue is left alone.
func (q *InMemoryQueue) Drain(err error) int {
	if !q.IsClosed() {
		return 0
	}
	var n int
	for j := range q.jobs {
		j.Fail(err)
		n++
	}
	q.observe()
	return n
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
