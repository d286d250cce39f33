// Package model contains domain models passed between layers.
package model

// Post is a candidate feed item authored by another user.
type Post struct {
	PostID      string
	AuthorID    string
	Tags        []string
	ContentType string // video, image, text; anything else encodes as 0
	Karma       int
	CreatedAt   string // ISO-8601 UTC, parsed lazily by the extractor
}

// UserProfile describes the viewer a feed is ranked for.
type UserProfile struct {
	BranchesOfInterest []string // accepted on the wire, not used by features
	TagsFollowed       []string
	Buddies            []string
	ActiveHours        []string // "HH:MM-HH:MM" windows
}

// Status tells the caller which ranking path produced a result.
type Status string

// Ranking outcomes.
const (
	StatusRanked   Status = "ranked"
	StatusFallback Status = "fallback_used"
	StatusEmpty    Status = "empty"
)

// Valid reports whether s is one of the known outcomes.
func (s Status) Valid() bool {
	switch s {
	case StatusRanked, StatusFallback, StatusEmpty:
		return true
	default:
		return false
	}
}

// RankedPost is a single scored entry in a ranking response.
type RankedPost struct {
	PostID string
	Score  float64
}

// RankResult is the outcome of ranking one user's candidate posts.
type RankResult struct {
	UserID      string
	RankedPosts []RankedPost
	Status      Status
}
