package encoding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/feedrank/internal/domain/features"
)

// Column names as the trained models know them.
const (
	ColKarma             = "karma"
	ColTimeMatchScore    = "time_match_score"
	ColUserFollowsTag    = "user_follows_tag"
	ColIsBuddyPost       = "is_buddy_post"
	ColPostType          = "Post Type"
	ColWeekdayType       = "Weekday Type"
	ColTimePeriods       = "Time Periods"
	ColKarmaBucket       = "karma_bucket"
	ColBuddyFollowedTag  = "buddy_followed_tag"
	ColPostHour          = "post_hour"
	ColPostRecencyHours  = "post_recency_hours"
	ColTimeWeightedKarma = "time_weighted_karma"
)

// DefaultColumns is the column order of the bundled models.
var DefaultColumns = []string{
	ColKarma,
	ColTimeMatchScore,
	ColUserFollowsTag,
	ColIsBuddyPost,
	ColPostType,
	ColWeekdayType,
	ColTimePeriods,
	ColKarmaBucket,
}

type accessor func(features.Record) float64

var registry = map[string]accessor{
	ColKarma:             func(r features.Record) float64 { return float64(r.Karma) },
	ColTimeMatchScore:    func(r features.Record) float64 { return r.TimeMatchScore },
	ColUserFollowsTag:    func(r features.Record) float64 { return boolCode(r.UserFollowsTag) },
	ColIsBuddyPost:       func(r features.Record) float64 { return boolCode(r.IsBuddyPost) },
	ColPostType:          func(r features.Record) float64 { return ContentTypeCode(r.ContentType) },
	ColWeekdayType:       func(r features.Record) float64 { return WeekdayTypeCode(r.WeekdayType) },
	ColTimePeriods:       func(r features.Record) float64 { return TimePeriodCode(r.TimePeriod) },
	ColKarmaBucket:       func(r features.Record) float64 { return KarmaBucketCode(r.KarmaBucket) },
	ColBuddyFollowedTag:  func(r features.Record) float64 { return boolCode(r.BuddyFollowedTag) },
	ColPostHour:          func(r features.Record) float64 { return float64(r.PostHour) },
	ColPostRecencyHours:  func(r features.Record) float64 { return r.RecencyHours },
	ColTimeWeightedKarma: func(r features.Record) float64 { return r.TimeWeightedKarma },
}

// KnownColumns lists every column a layout may reference, sorted.
func KnownColumns() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Layout is a validated, ordered column list. It is immutable once built.
type Layout struct {
	columns   []string
	accessors []accessor
	index     map[string]int
}

// NewLayout validates columns against the known set.
func NewLayout(columns []string) (*Layout, error) {
	if len(columns) == 0 {
		return nil, ErrEmptyLayout
	}
	l := &Layout{
		columns:   make([]string, len(columns)),
		accessors: make([]accessor, len(columns)),
		index:     make(map[string]int, len(columns)),
	}
	for i, name := range columns {
		acc, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownColumn, name, strings.Join(KnownColumns(), ", "))
		}
		if _, dup := l.index[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		l.columns[i] = name
		l.accessors[i] = acc
		l.index[name] = i
	}
	return l, nil
}

// Columns returns a copy of the column order.
func (l *Layout) Columns() []string {
	out := make([]string, len(l.columns))
	copy(out, l.columns)
	return out
}

// Width is the number of columns in every encoded row.
func (l *Layout) Width() int { return len(l.columns) }

// Encode produces one row in layout order.
func (l *Layout) Encode(r features.Record) []float64 {
	row := make([]float64, l.Width())
	for i, acc := range l.accessors {
		row[i] = acc(r)
	}
	return row
}

// Matrix encodes records row by row, preserving their order.
func (l *Layout) Matrix(records []features.Record) [][]float64 {
	m := make([][]float64, len(records))
	for i := range records {
		m[i] = l.Encode(records[i])
	}
	return m
}
