// Package worker runs ranking jobs taken off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/feedrank/internal/adapters/mq/queue"
	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/pkg/logger"
	"github.com/okian/feedrank/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Ranker scores one user's candidate posts.
type Ranker interface {
	Rank(ctx context.Context, userID string, posts []model.Post, profile model.UserProfile) (model.RankResult, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan *queue.Job
}

// Worker processes jobs until its queue closes or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	ranker    Ranker
	name      string
	processed *atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, r Ranker, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		ranker:    r,
		name:      "worker",
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(job); err != nil {
				w.logger.Debug(ctx, "job failed",
					logger.String("job_id", job.ID.String()),
					logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Processed returns the count the worker adds completed jobs to.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// process ranks a single job and delivers its outcome. A job whose caller has
// already gone away is dropped without touching the model.
func (w *InMemoryWorker) process(job *queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(metrics.SinceMs(start))
	}()

	if err := job.Ctx.Err(); err != nil {
		metrics.RecordErrorByComponent("worker", "expired")
		job.Fail(err)
		return fmt.Errorf("job %s expired after %s: %w", job.ID, job.Age(), err)
	}

	res, err := w.ranker.Rank(job.Ctx, job.UserID, job.Posts, job.Profile)
	w.processed.Add(1)
	job.Complete(res, err)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "rank_error")
		metrics.RecordErrorByType("rank_error", "high")
		return fmt.Errorf("rank job %s: %w", job.ID, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// workers add to processed; the metrics loop rates it against lastCount
	processed atomic.Int64
	lastCount int64

	shutdown chan struct{}
	stopped  atomic.Bool
	cancel   context.CancelFunc

	lastTick time.Time
	logger   logger.Logger
}

// NewPool creates a pool of workerCount workers. Non-positive counts fall back
// to twice the CPU count.
func NewPool(workerCount int, q Queue, r Ranker) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		lastTick: time.Now(),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, r,
			WithName("worker-"+strconv.Itoa(i)),
			withCounter(&p.processed),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerMessagesPerSecond(0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs the pool has ranked.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool. The workers keep ctx's values but not
// its cancellation: they run until Shutdown so that queued callers get an
// answer.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	go p.startMetricsUpdater(runCtx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	count := p.processed.Load()
	if elapsed := now.Sub(p.lastTick).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(count-p.lastCount) / elapsed)
	}
	p.lastTick, p.lastCount = now, count
}

// Shutdown closes the queue, lets workers drain what is already queued, and
// waits for them up to ctx or poolShutdownTimeout, whichever is sooner. Jobs
// the workers did not reach by then fail with queue.ErrQueueClosed.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-waitCtx.Done():
			timedOut++
			w.stop()
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	if d, ok := p.queue.(interface{ Drain(error) int }); ok {
		if n := d.Drain(queue.ErrQueueClosed); n > 0 {
			p.logger.Warn(ctx, "failed jobs left in queue", logger.Int("jobs", n))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, waitCtx.Err())
	}
	return nil
}

// Stop shuts the pool down with the default timeout.
func (p *Pool) Stop() {
	_ = p.Shutdown(context.Background())
}
