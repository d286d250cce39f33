package loadtest

import (
	"errors"
	"fmt"

	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/types"
)

// verifyResponse checks a successful response against the request that
// produced it. Every violated property is reported.
func verifyResponse(req types.RankRequest, resp types.RankResponse) error {
	userID, posts, _ := req.Domain()
	var errs []error

	if resp.UserID != userID {
		errs = append(errs, fmt.Errorf("user_id %q does not match request %q", resp.UserID, userID))
	}

	status := model.Status(resp.Status)
	if !status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", resp.Status))
	}

	if (status == model.StatusEmpty) != (len(posts) == 0) {
		errs = append(errs, fmt.Errorf("status %q for a request with %d posts", resp.Status, len(posts)))
	}
	if len(posts) > 0 && len(resp.RankedPosts) == 0 {
		errs = append(errs, errors.New("empty ranked_posts for a non-empty request"))
	}
	if status == model.StatusFallback && len(resp.RankedPosts) != len(posts) {
		errs = append(errs, fmt.Errorf("fallback returned %d of %d posts", len(resp.RankedPosts), len(posts)))
	}

	submitted := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		submitted[p.PostID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(resp.RankedPosts))
	for i, rp := range resp.RankedPosts {
		if _, ok := submitted[rp.PostID]; !ok {
			errs = append(errs, fmt.Errorf("ranked_posts[%d]: post %q was not submitted", i, rp.PostID))
		}
		if _, dup := seen[rp.PostID]; dup {
			errs = append(errs, fmt.Errorf("ranked_posts[%d]: post %q returned twice", i, rp.PostID))
		}
		seen[rp.PostID] = struct{}{}

		if i > 0 && rp.Score > resp.RankedPosts[i-1].Score {
			errs = append(errs, fmt.Errorf("ranked_posts[%d]: score %.4f above previous %.4f", i, rp.Score, resp.RankedPosts[i-1].Score))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
}
