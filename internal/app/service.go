// Package service runs ranking requests through a bounded job queue and a
// pool of workers sharing one read-only ranking engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	jobqueue "github.com/okian/feedrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/feedrank/internal/adapters/mq/worker"
	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/pkg/logger"
	"github.com/okian/feedrank/pkg/metrics"
)

// Service implements the API dependencies for feed ranking.
type Service struct {
	mu sync.RWMutex

	engine workerpool.Ranker
	queue  *jobqueue.InMemoryQueue
	pool   *workerpool.Pool
	model  ModelInfo

	workerCount     int
	queueSize       int
	requestTimeout  time.Duration
	shutdownTimeout time.Duration

	started bool

	requests     atomic.Int64
	ranked       atomic.Int64
	fallbackUsed atomic.Int64
	empty        atomic.Int64
	failed       atomic.Int64
	rejected     atomic.Int64
	timedOut     atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEngine sets the ranker workers call.
func WithEngine(r workerpool.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.engine = r
		}
	}
}

// WithModelInfo records which model the engine was built from.
func WithModelInfo(info ModelInfo) Option {
	return func(s *Service) {
		s.model = info
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of waiting jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRequestTimeout bounds how long RankFeed waits for a worker.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop lets workers drain queued jobs.
// Jobs still waiting after that fail with ErrNotStarted.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       1024,
		requestTimeout:  2 * time.Second,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the job queue and starts the worker pool. Calling Start on a
// running service is a no-op. Workers outlive ctx; only Stop ends them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.engine == nil {
		return ErrNoEngine
	}

	s.logger.Info(ctx, "starting ranking service...")

	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.engine)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("requestTimeout", s.requestTimeout),
		logger.String("model", s.model.Variant),
	)
	return nil
}

// Stop closes the queue and lets workers drain it for up to the shutdown
// timeout. Callers whose jobs were not reached get ErrNotStarted.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	pool := s.pool
	s.started = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping ranking service...")

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not stop cleanly", logger.Error(err))
	}
	s.logger.Info(ctx, "ranking service stopped")
}

// RankFeed queues a ranking job and waits for its outcome. A full queue fails
// fast with ErrBackpressure.
func (s *Service) RankFeed(ctx context.Context, userID string, posts []model.Post, profile model.UserProfile) (model.RankResult, error) {
	s.mu.RLock()
	started, q, timeout := s.started, s.queue, s.requestTimeout
	s.mu.RUnlock()

	if !started {
		return model.RankResult{}, ErrNotStarted
	}
	s.requests.Add(1)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	job := jobqueue.NewJob(ctx, userID, posts, profile)
	if err := q.Enqueue(ctx, job); err != nil {
		switch {
		case errors.Is(err, jobqueue.ErrQueueFull):
			s.rejected.Add(1)
			return model.RankResult{}, fmt.Errorf("%w: %d jobs waiting", ErrBackpressure, q.Capacity())
		case errors.Is(err, jobqueue.ErrQueueClosed):
			return model.RankResult{}, ErrNotStarted
		default:
			s.failed.Add(1)
			return model.RankResult{}, err
		}
	}

	select {
	case out := <-job.Done():
		if out.Err != nil {
			if ctx.Err() != nil {
				s.timedOut.Add(1)
				return model.RankResult{}, fmt.Errorf("%w: %w", ErrTimeout, out.Err)
			}
			if errors.Is(out.Err, jobqueue.ErrQueueClosed) || errors.Is(out.Err, context.Canceled) {
				s.rejected.Add(1)
				return model.RankResult{}, fmt.Errorf("%w: %w", ErrNotStarted, out.Err)
			}
			s.failed.Add(1)
			return model.RankResult{}, out.Err
		}
		s.count(out.Result.Status)
		return out.Result, nil
	case <-ctx.Done():
		s.timedOut.Add(1)
		metrics.RecordErrorByComponent("service", "timeout")
		return model.RankResult{}, fmt.Errorf("%w after %s: %w", ErrTimeout, job.Age().Round(time.Millisecond), ctx.Err())
	}
}

func (s *Service) count(status model.Status) {
	switch status {
	case model.StatusRanked:
		s.ranked.Add(1)
	case model.StatusFallback:
		s.fallbackUsed.Add(1)
	case model.StatusEmpty:
		s.empty.Add(1)
	}
}

// Model returns the model description the service was built with.
func (s *Service) Model() ModelInfo {
	return s.model
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"requestTimeout": s.requestTimeout.String(),
		"requests":       s.requests.Load(),
		"ranked":         s.ranked.Load(),
		"fallbackUsed":   s.fallbackUsed.Load(),
		"empty":          s.empty.Load(),
		"failed":         s.failed.Load(),
		"rejected":       s.rejected.Load(),
		"timedOut":       s.timedOut.Load(),
		"model":          s.model.stats(),
	}

	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["processed"] = s.pool.Processed()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
