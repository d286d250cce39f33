// Package features derives the fixed-schema feature record the ranking model
// consumes from a post and the viewer's profile.
package features

import "time"

// ContentType is the post media kind.
type ContentType string

// Known content types.
const (
	ContentVideo ContentType = "video"
	ContentImage ContentType = "image"
	ContentText  ContentType = "text"
)

// WeekdayType splits the week into working days and weekend.
type WeekdayType string

// Weekday types. Unknown marks an unparseable timestamp.
const (
	Weekday        WeekdayType = "Weekday"
	Weekend        WeekdayType = "Weekend"
	WeekdayUnknown WeekdayType = "Unknown"
)

// TimePeriod is the coarse part of day a post was created in.
type TimePeriod string

// Time periods. Unknown marks an unparseable timestamp.
const (
	Morning       TimePeriod = "Morning"
	Afternoon     TimePeriod = "Afternoon"
	Evening       TimePeriod = "Evening"
	Night         TimePeriod = "Night"
	PeriodUnknown TimePeriod = "Unknown"
)

// KarmaBucket is the coarse popularity tier of a post.
type KarmaBucket string

// Karma buckets.
const (
	KarmaLow    KarmaBucket = "low"
	KarmaMedium KarmaBucket = "medium"
	KarmaHigh   KarmaBucket = "high"
)

// Bucket boundaries, inclusive upper bounds.
const (
	karmaLowMax    = 33
	karmaMediumMax = 66
)

// Part-of-day boundaries in hours, lower bound inclusive.
const (
	morningStart   = 5
	afternoonStart = 12
	eveningStart   = 17
	nightStart     = 21
)

// BucketKarma maps a karma value onto its bucket.
func BucketKarma(karma int) KarmaBucket {
	switch {
	case karma <= karmaLowMax:
		return KarmaLow
	case karma <= karmaMediumMax:
		return KarmaMedium
	default:
		return KarmaHigh
	}
}

// PeriodOf maps an hour of day onto its time period.
func PeriodOf(hour int) TimePeriod {
	switch {
	case hour >= morningStart && hour < afternoonStart:
		return Morning
	case hour >= afternoonStart && hour < eveningStart:
		return Afternoon
	case hour >= eveningStart && hour < nightStart:
		return Evening
	default:
		return Night
	}
}

// WeekdayTypeOf maps a day of week onto Weekday or Weekend.
func WeekdayTypeOf(d time.Weekday) WeekdayType {
	if d == time.Saturday || d == time.Sunday {
		return Weekend
	}
	return Weekday
}

// Record is the engineered feature set for one post. KarmaBucket is always
// BucketKarma(Karma). When TimestampValid is false the time match score is 0
// and both WeekdayType and TimePeriod are Unknown.
type Record struct {
	PostID         string
	Karma          int
	TimeMatchScore float64
	UserFollowsTag bool
	IsBuddyPost    bool
	ContentType    ContentType
	WeekdayType    WeekdayType
	TimePeriod     TimePeriod
	KarmaBucket    KarmaBucket
	TimestampValid bool

	// Supplementary signals, only encoded when a model asks for them.
	BuddyFollowedTag  bool
	PostHour          int     // -1 when the timestamp is unknown
	RecencyHours      float64 // 0 when the timestamp is unknown
	TimeWeightedKarma float64
}
