package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/feedrank/internal/adapters/mq/queue"
	worker "github.com/okian/feedrank/internal/adapters/mq/worker"
	model "github.com/okian/feedrank/internal/domain/model"
	logging "github.com/okian/feedrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan *queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan *queue.Job, 64)}
}

func (mq *mockQueue) Dequeue(_ context.Context) <-chan *queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockRanker struct {
	mu     sync.Mutex
	errors map[string]error
	calls  map[string]int
	delay  time.Duration
}

func newMockRanker() *mockRanker {
	return &mockRanker{errors: make(map[string]error), calls: make(map[string]int)}
}

func (mr *mockRanker) Rank(_ context.Context, userID string, posts []model.Post, _ model.UserProfile) (model.RankResult, error) {
	if mr.delay > 0 {
		time.Sleep(mr.delay)
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.calls[userID]++
	if err, ok := mr.errors[userID]; ok {
		return model.RankResult{}, err
	}
	ranked := make([]model.RankedPost, len(posts))
	for i, p := range posts {
		ranked[i] = model.RankedPost{PostID: p.PostID, Score: 0.9}
	}
	return model.RankResult{UserID: userID, RankedPosts: ranked, Status: model.StatusRanked}, nil
}

func (mr *mockRanker) setError(userID string, err error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.errors[userID] = err
}

func (mr *mockRanker) callCount(userID string) int {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.calls[userID]
}

func job(ctx context.Context, userID string) *queue.Job {
	return queue.NewJob(ctx, userID, []model.Post{{PostID: "p-" + userID}}, model.UserProfile{})
}

func await(j *queue.Job) (queue.Outcome, bool) {
	select {
	case out := <-j.Done():
		return out, true
	case <-time.After(2 * time.Second):
		return queue.Outcome{}, false
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		ranker := newMockRanker()

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, ranker,
				worker.WithName("test-worker"),
				worker.WithLogger(logging.Named("custom")),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
				convey.So(w.Processed(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, ranker)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And a job is queued", func() {
				j := job(context.Background(), "user-1")
				q.jobs <- j
				out, ok := await(j)

				convey.Convey("Then the ranked result should be delivered", func() {
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(out.Err, convey.ShouldBeNil)
					convey.So(out.Result.Status, convey.ShouldEqual, model.StatusRanked)
					convey.So(out.Result.RankedPosts[0].PostID, convey.ShouldEqual, "p-user-1")
				})
			})

			convey.Convey("And ranking fails", func() {
				boom := errors.New("model down")
				ranker.setError("user-2", boom)
				j := job(context.Background(), "user-2")
				q.jobs <- j
				out, ok := await(j)

				convey.Convey("Then the error should be delivered to the caller", func() {
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(errors.Is(out.Err, boom), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And the caller has already given up", func() {
				jctx, jcancel := context.WithCancel(context.Background())
				jcancel()
				j := job(jctx, "user-3")
				q.jobs <- j
				out, ok := await(j)

				convey.Convey("Then the ranker should not be called", func() {
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(errors.Is(out.Err, context.Canceled), convey.ShouldBeTrue)
					convey.So(ranker.callCount("user-3"), convey.ShouldEqual, 0)
				})
			})

			convey.Convey("And the worker is shut down", func() {
				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()

				convey.Convey("Then it should stop cleanly, even twice", func() {
					convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
					convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When the queue closes", func() {
			w := worker.NewInMemoryWorker(q, ranker)
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()
			_ = q.Close()

			convey.Convey("Then Run should return", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		ranker := newMockRanker()

		convey.Convey("When created with a non-positive size", func() {
			p := worker.NewPool(0, q, ranker)

			convey.Convey("Then it should default to a positive size", func() {
				convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When started and fed jobs", func() {
			p := worker.NewPool(3, q, ranker)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			p.Start(ctx)

			jobs := make([]*queue.Job, 10)
			for i := range jobs {
				jobs[i] = job(context.Background(), fmt.Sprintf("user-%d", i))
				q.jobs <- jobs[i]
			}

			convey.Convey("Then every job should complete", func() {
				for _, j := range jobs {
					out, ok := await(j)
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(out.Err, convey.ShouldBeNil)
				}
				convey.So(p.Processed(), convey.ShouldEqual, 10)
				convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shut down with jobs still queued", func() {
			p := worker.NewPool(2, q, ranker)
			p.Start(context.Background())

			jobs := make([]*queue.Job, 5)
			for i := range jobs {
				jobs[i] = job(context.Background(), fmt.Sprintf("drain-%d", i))
				q.jobs <- jobs[i]
			}
			err := p.Shutdown(context.Background())

			convey.Convey("Then queued jobs should drain before workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, j := range jobs {
					_, ok := await(j)
					convey.So(ok, convey.ShouldBeTrue)
				}
			})

			convey.Convey("And a second shutdown should be a no-op", func() {
				convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
				p.Stop()
			})
		})
	})
}

func TestWorkerConcurrency(t *testing.T) {
	convey.Convey("Given a pool under concurrent load", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		ranker := newMockRanker()
		ranker.delay = time.Millisecond
		p := worker.NewPool(8, q, ranker)
		p.Start(context.Background())

		var wg sync.WaitGroup
		var mu sync.Mutex
		var failures int
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for k := 0; k < 20; k++ {
					j := job(context.Background(), fmt.Sprintf("c%d-%d", n, k))
					if err := q.Enqueue(context.Background(), j); err != nil {
						mu.Lock()
						failures++
						mu.Unlock()
						continue
					}
					if out, ok := await(j); !ok || out.Err != nil {
						mu.Lock()
						failures++
						mu.Unlock()
					}
				}
			}(i)
		}
		wg.Wait()

		convey.Convey("Then every job should be ranked exactly once", func() {
			convey.So(failures, convey.ShouldEqual, 0)
			convey.So(ranker.callCount("c3-7"), convey.ShouldEqual, 1)
			convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})
}
