// Package ranking turns a user's candidate posts into a scored, ordered feed.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/feedrank/internal/domain/encoding"
	"github.com/okian/feedrank/internal/domain/features"
	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/scoring"
	"github.com/okian/feedrank/pkg/logger"
	"github.com/okian/feedrank/pkg/metrics"
)

const (
	DefaultThreshold          = 0.5
	DefaultFallbackMultiplier = 0.8

	// fallback scores are rounded to this many decimal places
	fallbackPrecision = 1e4
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithThreshold sets the minimum raw score a post needs to be kept.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithFallbackMultiplier sets the factor applied to every score when no post
// reaches the threshold.
func WithFallbackMultiplier(m float64) Option {
	return func(e *Engine) {
		e.multiplier = m
	}
}

// WithExtractor replaces the default feature extractor.
func WithExtractor(x *features.Extractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine ranks candidate posts with a single read-only model. It holds no
// per-request state and may be shared across goroutines as long as the model
// allows concurrent Predict calls.
type Engine struct {
	model      scoring.Model
	layout     *encoding.Layout
	extractor  *features.Extractor
	threshold  float64
	multiplier float64
	log        logger.Logger
}

// New creates an Engine scoring rows built with layout.
func New(m scoring.Model, layout *encoding.Layout, opts ...Option) (*Engine, error) {
	if m == nil {
		return nil, ErrNilModel
	}
	if layout == nil {
		return nil, ErrNilLayout
	}
	e := &Engine{
		model:      m,
		layout:     layout,
		threshold:  DefaultThreshold,
		multiplier: DefaultFallbackMultiplier,
	}
	for _, opt := range opts {
		opt(e)
	}
	if math.IsNaN(e.threshold) || math.IsInf(e.threshold, 0) {
		return nil, fmt.Errorf("%w: threshold %v", ErrInvalidOption, e.threshold)
	}
	if math.IsNaN(e.multiplier) || e.multiplier <= 0 || e.multiplier > 1 {
		return nil, fmt.Errorf("%w: fallback multiplier %v must be in (0, 1]", ErrInvalidOption, e.multiplier)
	}
	if e.extractor == nil {
		e.extractor = features.NewExtractor()
	}
	if e.log == nil {
		e.log = logger.Get().Named("ranking")
	}
	return e, nil
}

// Threshold returns the configured keep threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// FallbackMultiplier returns the degradation factor.
func (e *Engine) FallbackMultiplier() float64 { return e.multiplier }

// Columns returns the feature column order sent to the model.
func (e *Engine) Columns() []string { return e.layout.Columns() }

// Rank scores posts for userID. An empty batch never reaches the model. A
// model failure fails the whole request.
func (e *Engine) Rank(ctx context.Context, userID string, posts []model.Post, profile model.UserProfile) (model.RankResult, error) {
	start := time.Now()
	res := model.RankResult{UserID: userID, RankedPosts: []model.RankedPost{}}

	if len(posts) == 0 {
		res.Status = model.StatusEmpty
		metrics.RecordRankRequest(string(res.Status))
		metrics.RecordRankLatency(metrics.SinceMs(start))
		return res, nil
	}
	metrics.RecordBatchSize(len(posts))

	scores, err := e.score(ctx, posts, profile)
	if err != nil {
		metrics.RecordRankRequest("error")
		e.log.Error(ctx, "scoring failed",
			logger.String("user_id", userID),
			logger.Int("posts", len(posts)),
			logger.Error(err))
		return model.RankResult{}, err
	}

	for _, o := range outcomes {
		if o.applies(scores, e.threshold) {
			res.Status = o.status
			res.RankedPosts = o.emit(posts, scores, e)
			break
		}
	}
	sortByScore(res.RankedPosts)

	metrics.RecordRankRequest(string(res.Status))
	metrics.RecordRankLatency(metrics.SinceMs(start))
	e.log.Debug(ctx, "feed ranked",
		logger.String("user_id", userID),
		logger.String("status", string(res.Status)),
		logger.Int("candidates", len(posts)),
		logger.Int("returned", len(res.RankedPosts)))
	return res, nil
}

func (e *Engine) score(ctx context.Context, posts []model.Post, profile model.UserProfile) ([]float64, error) {
	records := e.extractor.ExtractBatch(posts, profile)
	fallbacks := 0
	for i := range records {
		if !records[i].TimestampValid {
			fallbacks++
		}
	}
	metrics.RecordFeatureFallbacks(fallbacks)

	rows := e.layout.Matrix(records)
	start := time.Now()
	scores, err := e.model.Predict(ctx, rows)
	metrics.RecordModelLatency(metrics.SinceMs(start))
	if err != nil {
		metrics.RecordModelError()
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}
	if len(scores) != len(rows) {
		metrics.RecordModelError()
		return nil, fmt.Errorf("%w: got %d for %d posts", ErrScoreCount, len(scores), len(rows))
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			metrics.RecordModelError()
			return nil, fmt.Errorf("%w: post %q", ErrNonFiniteScore, posts[i].PostID)
		}
	}
	return scores, nil
}

// outcome is one row of the decision table. Rows are tried in order and the
// first that applies produces the result.
type outcome struct {
	status  model.Status
	applies func(scores []float64, threshold float64) bool
	emit    func(posts []model.Post, scores []float64, e *Engine) []model.RankedPost
}

var outcomes = []outcome{
	{status: model.StatusRanked, applies: anyAtLeast, emit: keepAtLeast},
	{status: model.StatusFallback, applies: always, emit: degradeAll},
}

func anyAtLeast(scores []float64, threshold float64) bool {
	for _, s := range scores {
		if s >= threshold {
			return true
		}
	}
	return false
}

func always([]float64, float64) bool { return true }

func keepAtLeast(posts []model.Post, scores []float64, e *Engine) []model.RankedPost {
	out := make([]model.RankedPost, 0, len(posts))
	for i, s := range scores {
		if s >= e.threshold {
			out = append(out, model.RankedPost{PostID: posts[i].PostID, Score: s})
		}
	}
	return out
}

func degradeAll(posts []model.Post, scores []float64, e *Engine) []model.RankedPost {
	out := make([]model.RankedPost, len(posts))
	for i, s := range scores {
		out[i] = model.RankedPost{
			PostID: posts[i].PostID,
			Score:  math.Round(s*e.multiplier*fallbackPrecision) / fallbackPrecision,
		}
	}
	return out
}

// sortByScore orders posts by descending score. Equal scores keep input order.
func sortByScore(posts []model.RankedPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Score > posts[j].Score
	})
}
