package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/feedrank/internal/domain/model"
)

// Outcome is what a worker hands back for a job.
type Outcome struct {
	Result model.RankResult
	Err    error
}

// Job is one ranking request waiting for a worker. Ctx belongs to the caller;
// once it is done nobody is waiting for the outcome.
type Job struct {
	ID       uuid.UUID
	Ctx      context.Context
	UserID   string
	Posts    []model.Post
	Profile  model.UserProfile
	Enqueued time.Time

	reply chan Outcome
}

// NewJob creates a job with a fresh id and a single-slot reply channel.
func NewJob(ctx context.Context, userID string, posts []model.Post, profile model.UserProfile) *Job {
	return &Job{
		ID:       uuid.New(),
		Ctx:      ctx,
		UserID:   userID,
		Posts:    posts,
		Profile:  profile,
		Enqueued: time.Now(),
		reply:    make(chan Outcome, 1),
	}
}

// Complete delivers the outcome. Only the first call has an effect and it
// never blocks.
func (j *Job) Complete(res model.RankResult, err error) {
	select {
	case j.reply <- Outcome{Result: res, Err: err}:
	default:
	}
}

// Fail completes the job with err and an empty result.
func (j *Job) Fail(err error) {
	j.Complete(model.RankResult{}, err)
}

// Age reports how long the job has been waiting.
func (j *Job) Age() time.Duration {
	return time.Since(j.Enqueued)
}

// Done returns the channel the outcome is delivered on.
func (j *Job) Done() <-chan Outcome {
	return j.reply
}
