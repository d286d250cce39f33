package loadtest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/okian/feedrank/internal/adapters/http/api"
	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/types"
	"github.com/okian/feedrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func request(ids ...string) types.RankRequest {
	posts := make([]model.Post, len(ids))
	for i, id := range ids {
		posts[i] = model.Post{PostID: id}
	}
	return types.NewRankRequest("u1", posts, model.UserProfile{})
}

func ranked(status model.Status, pairs ...interface{}) types.RankResponse {
	resp := types.RankResponse{UserID: "u1", RankedPosts: []types.RankedPost{}, Status: string(status)}
	for i := 0; i < len(pairs); i += 2 {
		resp.RankedPosts = append(resp.RankedPosts, types.RankedPost{PostID: pairs[i].(string), Score: pairs[i+1].(float64)})
	}
	return resp
}

func TestVerifyResponse(t *testing.T) {
	Convey("Given responses to verify", t, func() {
		Convey("Then a filtered, sorted response should pass", func() {
			So(verifyResponse(request("a", "b", "c"), ranked(model.StatusRanked, "b", 0.9, "a", 0.6)), ShouldBeNil)
		})

		Convey("Then a complete fallback should pass", func() {
			So(verifyResponse(request("a", "b"), ranked(model.StatusFallback, "a", 0.3, "b", 0.1)), ShouldBeNil)
		})

		Convey("Then an empty response to an empty request should pass", func() {
			So(verifyResponse(request(), ranked(model.StatusEmpty)), ShouldBeNil)
		})

		cases := []struct {
			name string
			req  types.RankRequest
			resp types.RankResponse
		}{
			{"unsorted scores", request("a", "b"), ranked(model.StatusRanked, "a", 0.6, "b", 0.9)},
			{"unknown status", request("a"), ranked("great", "a", 0.9)},
			{"empty status with posts", request("a"), ranked(model.StatusEmpty)},
			{"ranked status without posts", request(), ranked(model.StatusRanked)},
			{"empty list for posts", request("a"), ranked(model.StatusRanked)},
			{"foreign post", request("a"), ranked(model.StatusRanked, "z", 0.9)},
			{"duplicate post", request("a", "b"), ranked(model.StatusRanked, "a", 0.9, "a", 0.9)},
			{"partial fallback", request("a", "b"), ranked(model.StatusFallback, "a", 0.3)},
			{"wrong user", request("a"), types.RankResponse{UserID: "u2", RankedPosts: []types.RankedPost{{PostID: "a", Score: 0.9}}, Status: "ranked"}},
		}
		for _, tc := range cases {
			Convey("Then "+tc.name+" should fail", func() {
				So(errors.Is(verifyResponse(tc.req, tc.resp), ErrVerification), ShouldBeTrue)
			})
		}
	})
}

func TestGenerateRequests(t *testing.T) {
	Convey("Given a generator configuration", t, func() {
		config := &Config{NumRequests: 40, MaxPosts: 8, Workers: 3}
		stats := &Stats{}

		requests, err := generateRequests(context.Background(), config, stats)

		Convey("Then every request should be valid and sized within bounds", func() {
			So(err, ShouldBeNil)
			So(len(requests), ShouldEqual, 40)
			So(stats.RequestsGenerated, ShouldEqual, 40)
			for i := range requests {
				So(requests[i].Validate(config.MaxPosts), ShouldBeNil)
			}
		})

		Convey("Then post ids should be unique across the run", func() {
			seen := map[string]bool{}
			for i := range requests {
				for _, p := range *requests[i].Posts {
					So(seen[*p.PostID], ShouldBeFalse)
					seen[*p.PostID] = true
				}
			}
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then generation should stop with the context error", func() {
			_, err := generateRequests(ctx, &Config{NumRequests: 5, Workers: 1}, &Stats{})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

// karmaRanker keeps posts with karma >= 50 best first and falls back to
// everything otherwise.
type karmaRanker struct {
	reverse bool
}

func (k karmaRanker) RankFeed(_ context.Context, userID string, posts []model.Post, _ model.UserProfile) (model.RankResult, error) {
	res := model.RankResult{UserID: userID, RankedPosts: []model.RankedPost{}, Status: model.StatusEmpty}
	if len(posts) == 0 {
		return res, nil
	}
	res.Status = model.StatusRanked
	for _, p := range posts {
		if p.Karma >= 50 {
			res.RankedPosts = append(res.RankedPosts, model.RankedPost{PostID: p.PostID, Score: float64(p.Karma) / 100})
		}
	}
	if len(res.RankedPosts) == 0 {
		res.Status = model.StatusFallback
		for _, p := range posts {
			res.RankedPosts = append(res.RankedPosts, model.RankedPost{PostID: p.PostID, Score: float64(p.Karma) / 125})
		}
	}
	sort.SliceStable(res.RankedPosts, func(i, j int) bool {
		if k.reverse {
			return res.RankedPosts[i].Score < res.RankedPosts[j].Score
		}
		return res.RankedPosts[i].Score > res.RankedPosts[j].Score
	})
	return res, nil
}

func newTestServer(deps api.Dependencies) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, nil).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func TestRun(t *testing.T) {
	Convey("Given a well-behaved ranking service", t, func() {
		srv := newTestServer(karmaRanker{})
		defer srv.Close()

		config := &Config{BaseURL: srv.URL, NumRequests: 30, MaxPosts: 10, Workers: 4, Timeout: 5 * time.Second}
		stats, err := Run(context.Background(), config)

		Convey("Then every response should verify", func() {
			So(err, ShouldBeNil)
			So(stats.RequestsSubmitted, ShouldEqual, 30)
			So(stats.Ranked+stats.FallbackUsed+stats.Empty, ShouldEqual, 30)
			So(stats.VerificationFailed, ShouldEqual, 0)
			So(stats.Failed, ShouldEqual, 0)
		})
	})

	Convey("Given a service that sorts the wrong way", t, func() {
		srv := newTestServer(karmaRanker{reverse: true})
		defer srv.Close()

		// every request carries posts, so the ordering check can bite
		config := &Config{BaseURL: srv.URL, NumRequests: 20, MaxPosts: 10, Workers: 2, Timeout: 5 * time.Second}
		stats := &Stats{}
		requests := make([]types.RankRequest, config.NumRequests)
		for i := range requests {
			requests[i] = types.NewRankRequest("u1", []model.Post{
				{PostID: "lo", Tags: []string{}, Karma: 60, CreatedAt: "2025-05-27T07:30:00Z"},
				{PostID: "hi", Tags: []string{}, Karma: 90, CreatedAt: "2025-05-27T07:30:00Z"},
			}, model.UserProfile{})
		}

		Convey("Then verification should catch every response", func() {
			So(submitRequests(context.Background(), config, requests, stats), ShouldBeNil)
			So(stats.VerificationFailed, ShouldEqual, 20)
		})
	})

	Convey("Given a service that is down", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("Then the health check should fail the run", func() {
			_, err := Run(context.Background(), &Config{BaseURL: srv.URL, NumRequests: 1, Workers: 1, Timeout: time.Second})
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})

	Convey("Given nothing to submit", t, func() {
		Convey("Then submission should refuse", func() {
			So(errors.Is(submitRequests(context.Background(), &Config{Workers: 1}, nil, &Stats{}), ErrNoRequests), ShouldBeTrue)
		})
	})
}
