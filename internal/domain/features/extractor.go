package features

import (
	"time"

	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/timematch"
)

// minRecencyHours stands in for a zero or negative age so that karma can be
// divided by recency.
const minRecencyHours = 0.01

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithTimeMatch sets the calculator used for time_match_score.
func WithTimeMatch(c *timematch.Calculator) Option {
	return func(e *Extractor) {
		if c != nil {
			e.timeMatch = c
		}
	}
}

// WithClock sets the clock recency is measured against.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// Extractor builds feature records. It keeps no per-call state, so a single
// instance can serve concurrent requests.
type Extractor struct {
	timeMatch *timematch.Calculator
	now       func() time.Time
}

// NewExtractor creates an Extractor with a default calculator and wall clock.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		timeMatch: timematch.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract derives the feature record for a single post.
func (e *Extractor) Extract(post model.Post, profile model.UserProfile) Record {
	v := newViewer(profile)
	return e.extract(post, v, e.now().UTC())
}

// ExtractBatch derives records for posts in input order. The profile's sets
// and windows are prepared once for the whole batch.
func (e *Extractor) ExtractBatch(posts []model.Post, profile model.UserProfile) []Record {
	v := newViewer(profile)
	now := e.now().UTC()
	out := make([]Record, len(posts))
	for i := range posts {
		out[i] = e.extract(posts[i], v, now)
	}
	return out
}

func (e *Extractor) extract(post model.Post, v viewer, now time.Time) Record {
	r := Record{
		PostID:         post.PostID,
		Karma:          post.Karma,
		UserFollowsTag: v.followsAny(post.Tags),
		IsBuddyPost:    v.isBuddy(post.AuthorID),
		ContentType:    ContentType(post.ContentType),
		KarmaBucket:    BucketKarma(post.Karma),
		WeekdayType:    WeekdayUnknown,
		TimePeriod:     PeriodUnknown,
		PostHour:       -1,
	}
	r.BuddyFollowedTag = r.IsBuddyPost && r.UserFollowsTag

	ts, err := timematch.ParseTimestamp(post.CreatedAt)
	if err != nil {
		return r
	}
	r.TimestampValid = true
	r.TimeMatchScore = e.timeMatch.ScoreWindows(timematch.MinuteOfDay(ts), v.windows)
	r.TimePeriod = PeriodOf(ts.Hour())
	r.WeekdayType = WeekdayTypeOf(ts.Weekday())
	r.PostHour = ts.Hour()

	r.RecencyHours = now.Sub(ts).Hours()
	if r.RecencyHours <= 0 {
		r.RecencyHours = minRecencyHours
	}
	r.TimeWeightedKarma = float64(post.Karma) / r.RecencyHours
	return r
}

// viewer is the lookup form of a UserProfile.
type viewer struct {
	tags    map[string]struct{}
	buddies map[string]struct{}
	windows []timematch.Window
}

func newViewer(p model.UserProfile) viewer {
	return viewer{
		tags:    toSet(p.TagsFollowed),
		buddies: toSet(p.Buddies),
		windows: timematch.ParseWindows(p.ActiveHours),
	}
}

func (v viewer) followsAny(tags []string) bool {
	for _, t := range tags {
		if _, ok := v.tags[t]; ok {
			return true
		}
	}
	return false
}

func (v viewer) isBuddy(author string) bool {
	_, ok := v.buddies[author]
	return ok
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}
