// Package encoding turns feature records into the ordered numeric rows a
// scoring model expects.
//
// Every categorical mapping is total: values outside the known set encode as
// the documented default instead of failing.
package encoding

import "github.com/okian/feedrank/internal/domain/features"

// ContentTypeCode encodes a content type. Unknown types encode as 0.
func ContentTypeCode(c features.ContentType) float64 {
	switch c {
	case features.ContentVideo:
		return 0.08
	case features.ContentImage:
		return 0.04
	case features.ContentText:
		return 0.02
	default:
		return 0
	}
}

// WeekdayTypeCode encodes a weekday type. Unknown encodes as 0.
func WeekdayTypeCode(w features.WeekdayType) float64 {
	if w == features.Weekend {
		return 1
	}
	return 0
}

// TimePeriodCode encodes a time period. Night shares Afternoon's code, the
// way the trained models saw it. Unknown encodes as 0.
func TimePeriodCode(p features.TimePeriod) float64 {
	switch p {
	case features.Morning:
		return 1
	case features.Afternoon, features.Night:
		return 2
	case features.Evening:
		return 3
	default:
		return 0
	}
}

// KarmaBucketCode encodes a karma bucket. Unknown encodes as 0.
func KarmaBucketCode(b features.KarmaBucket) float64 {
	switch b {
	case features.KarmaMedium:
		return 1
	case features.KarmaHigh:
		return 2
	default:
		return 0
	}
}

func boolCode(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
