package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/types"
	"github.com/okian/feedrank/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Value pools for generated profiles and posts.
var (
	tagPool      = []string{"ai", "ml", "python", "coding", "go", "design", "music", "gardening", "travel", "sports"}
	branchPool   = []string{"AI", "DS", "CS", "EE", "ME"}
	contentTypes = []string{"video", "image", "text", "poll"}
	windowPool   = []string{"07:00-09:00", "12:00-13:30", "20:00-23:00", "22:00-02:00", "bogus"}
)

// Constants for generated values.
const (
	maxKarma        = 100
	maxTagsPerPost  = 3
	maxProfileItems = 4
	buddyCount      = 5
	timestampSpan   = 7 * 24 * time.Hour
	badTimestampOne = 20 // one post in this many gets an unparseable timestamp
	authorBuddyOdds = 3  // one post in this many is written by a buddy
)

// getRandomInt returns a uniform integer in [0, n) using crypto/rand.
func getRandomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

func pick(pool []string) string {
	return pool[getRandomInt(len(pool))]
}

func sample(pool []string, maxItems int) []string {
	n := getRandomInt(maxItems + 1)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, pick(pool))
	}
	return out
}

// generateRequests builds config.NumRequests random ranking requests, split
// across config.Workers goroutines.
func generateRequests(ctx context.Context, config *Config, stats *Stats) ([]types.RankRequest, error) {
	logger.Get().Info(ctx, "generating ranking requests", logger.Int("numRequests", config.NumRequests))

	requests := make([]types.RankRequest, config.NumRequests)

	workerCount := max(minInt(config.Workers, config.NumRequests), 1)
	perWorker := config.NumRequests / workerCount
	base := time.Now().UTC()

	gr, gctx := errgroup.WithContext(ctx)
	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.NumRequests
		}

		gr.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("failed to generate request %d: %w", i, err)
				}
				requests[i] = generateSingleRequest(base, config.MaxPosts)
			}
			return nil
		})
	}

	if err := gr.Wait(); err != nil {
		return nil, fmt.Errorf("request generation interrupted: %w", err)
	}

	stats.RequestsGenerated = len(requests)
	logger.Get().Info(ctx, "generated requests successfully", logger.Int("count", len(requests)))
	return requests, nil
}

// generateSingleRequest creates one request with between zero and maxPosts
// posts, all with fresh uuid ids.
func generateSingleRequest(base time.Time, maxPosts int) types.RankRequest {
	buddies := make([]string, buddyCount)
	for i := range buddies {
		buddies[i] = uuid.NewString()
	}

	profile := model.UserProfile{
		BranchesOfInterest: sample(branchPool, maxProfileItems),
		TagsFollowed:       sample(tagPool, maxProfileItems),
		Buddies:            buddies[:getRandomInt(buddyCount+1)],
		ActiveHours:        sample(windowPool, maxProfileItems),
	}

	posts := make([]model.Post, getRandomInt(maxPosts+1))
	for i := range posts {
		posts[i] = generatePost(base, buddies)
	}

	return types.NewRankRequest(uuid.NewString(), posts, profile)
}

func generatePost(base time.Time, buddies []string) model.Post {
	author := uuid.NewString()
	if getRandomInt(authorBuddyOdds) == 0 {
		author = pick(buddies)
	}

	createdAt := base.Add(-time.Duration(getRandomInt(int(timestampSpan/time.Minute))) * time.Minute).Format(time.RFC3339)
	if getRandomInt(badTimestampOne) == 0 {
		createdAt = "not-a-date"
	}

	return model.Post{
		PostID:      uuid.NewString(),
		AuthorID:    author,
		Tags:        sample(tagPool, maxTagsPerPost),
		ContentType: pick(contentTypes),
		Karma:       getRandomInt(maxKarma + 1),
		CreatedAt:   createdAt,
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
