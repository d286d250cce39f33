package ranking_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/feedrank/internal/domain/encoding"
	"github.com/okian/feedrank/internal/domain/features"
	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/ranking"
	"github.com/okian/feedrank/internal/domain/scoring"
	"github.com/okian/feedrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var profile = model.UserProfile{
	BranchesOfInterest: []string{"AI"},
	TagsFollowed:       []string{"python", "ml"},
	Buddies:            []string{"u1"},
	ActiveHours:        []string{"07:00-09:00", "20:00-23:00"},
}

func post(id string, karma int, author string, tags ...string) model.Post {
	return model.Post{
		PostID:      id,
		AuthorID:    author,
		Tags:        tags,
		ContentType: "text",
		Karma:       karma,
		CreatedAt:   "2025-05-27T07:30:00Z",
	}
}

// stub returns fixed scores and remembers what it was asked.
type stub struct {
	scores []float64
	err    error
	calls  int
	rows   [][]float64
}

func (s *stub) Predict(_ context.Context, rows [][]float64) ([]float64, error) {
	s.calls++
	s.rows = rows
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

func defaultLayout() *encoding.Layout {
	l, err := encoding.NewLayout(encoding.DefaultColumns)
	if err != nil {
		panic(err)
	}
	return l
}

func fixedExtractor() *features.Extractor {
	now := time.Date(2025, 5, 27, 9, 30, 0, 0, time.UTC)
	return features.NewExtractor(features.WithClock(func() time.Time { return now }))
}

func newEngine(m scoring.Model, opts ...ranking.Option) *ranking.Engine {
	opts = append([]ranking.Option{ranking.WithExtractor(fixedExtractor())}, opts...)
	e, err := ranking.New(m, defaultLayout(), opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func ids(posts []model.RankedPost) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.PostID
	}
	return out
}

func TestEngine_New(t *testing.T) {
	Convey("Given engine construction", t, func() {
		Convey("Then defaults should apply", func() {
			e, err := ranking.New(&stub{}, defaultLayout())
			So(err, ShouldBeNil)
			So(e.Threshold(), ShouldEqual, 0.5)
			So(e.FallbackMultiplier(), ShouldEqual, 0.8)
			So(e.Columns(), ShouldResemble, encoding.DefaultColumns)
		})

		Convey("Then options should override defaults", func() {
			e, err := ranking.New(&stub{}, defaultLayout(),
				ranking.WithThreshold(0.7),
				ranking.WithFallbackMultiplier(0.5),
				ranking.WithLogger(logger.Named("test")),
				ranking.WithExtractor(nil),
			)
			So(err, ShouldBeNil)
			So(e.Threshold(), ShouldEqual, 0.7)
			So(e.FallbackMultiplier(), ShouldEqual, 0.5)
		})

		Convey("Then missing collaborators should be rejected", func() {
			_, err := ranking.New(nil, defaultLayout())
			So(errors.Is(err, ranking.ErrNilModel), ShouldBeTrue)
			_, err = ranking.New(&stub{}, nil)
			So(errors.Is(err, ranking.ErrNilLayout), ShouldBeTrue)
		})

		Convey("Then out-of-range options should be rejected", func() {
			for _, opt := range []ranking.Option{
				ranking.WithFallbackMultiplier(0),
				ranking.WithFallbackMultiplier(1.5),
				ranking.WithFallbackMultiplier(math.NaN()),
				ranking.WithThreshold(math.Inf(1)),
			} {
				_, err := ranking.New(&stub{}, defaultLayout(), opt)
				So(errors.Is(err, ranking.ErrInvalidOption), ShouldBeTrue)
			}
		})
	})
}

func TestEngine_Rank(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine over a stubbed model", t, func() {
		Convey("When the batch is empty", func() {
			m := &stub{}
			res, err := newEngine(m).Rank(ctx, "user1", nil, profile)

			Convey("Then the model should not be invoked and the status is empty", func() {
				So(err, ShouldBeNil)
				So(m.calls, ShouldEqual, 0)
				So(res.UserID, ShouldEqual, "user1")
				So(res.Status, ShouldEqual, model.StatusEmpty)
				So(res.RankedPosts, ShouldNotBeNil)
				So(len(res.RankedPosts), ShouldEqual, 0)
			})
		})

		Convey("When a relevant buddy post scores above the threshold", func() {
			m := &stub{scores: []float64{0.9}}
			res, err := newEngine(m).Rank(ctx, "user1", []model.Post{post("p1", 90, "u1", "ml")}, profile)

			Convey("Then it should be ranked with its raw score", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusRanked)
				So(res.RankedPosts, ShouldResemble, []model.RankedPost{{PostID: "p1", Score: 0.9}})
			})

			Convey("And the model should see one row in column order", func() {
				So(m.calls, ShouldEqual, 1)
				So(m.rows, ShouldResemble, [][]float64{{90, 1, 1, 1, 0.02, 0, 1, 2}})
			})
		})

		Convey("When the only post scores below the threshold", func() {
			m := &stub{scores: []float64{0.3}}
			res, err := newEngine(m).Rank(ctx, "user1", []model.Post{post("p1", 10, "u9", "random")}, profile)

			Convey("Then the degraded score should be returned", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusFallback)
				So(len(res.RankedPosts), ShouldEqual, 1)
				So(res.RankedPosts[0].Score, ShouldAlmostEqual, 0.24, 1e-12)
			})
		})

		Convey("When some posts clear the threshold", func() {
			m := &stub{scores: []float64{0.2, 0.7, 0.5, 0.9}}
			posts := []model.Post{post("p1", 1, "x"), post("p2", 1, "x"), post("p3", 1, "x"), post("p4", 1, "x")}
			res, err := newEngine(m).Rank(ctx, "user1", posts, profile)

			Convey("Then only those at or above it should be kept, best first", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusRanked)
				So(ids(res.RankedPosts), ShouldResemble, []string{"p4", "p2", "p3"})
				So(res.RankedPosts[2].Score, ShouldEqual, 0.5)
			})
		})

		Convey("When every post falls short", func() {
			m := &stub{scores: []float64{0.1, 0.4, 0.2}}
			posts := []model.Post{post("p1", 1, "x"), post("p2", 1, "x"), post("p3", 1, "x")}
			res, err := newEngine(m).Rank(ctx, "user1", posts, profile)

			Convey("Then all of them should be degraded and sorted", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusFallback)
				So(ids(res.RankedPosts), ShouldResemble, []string{"p2", "p3", "p1"})
				So(res.RankedPosts[0].Score, ShouldEqual, 0.32)
				So(res.RankedPosts[1].Score, ShouldEqual, 0.16)
				So(res.RankedPosts[2].Score, ShouldEqual, 0.08)
			})
		})

		Convey("When scores tie", func() {
			m := &stub{scores: []float64{0.6, 0.6, 0.6}}
			posts := []model.Post{post("a", 1, "x"), post("b", 1, "x"), post("c", 1, "x")}
			res, err := newEngine(m).Rank(ctx, "user1", posts, profile)

			Convey("Then input order should be preserved", func() {
				So(err, ShouldBeNil)
				So(ids(res.RankedPosts), ShouldResemble, []string{"a", "b", "c"})
			})
		})

		Convey("When a custom threshold is set", func() {
			m := &stub{scores: []float64{0.9}}
			res, err := newEngine(m, ranking.WithThreshold(0.95)).Rank(ctx, "user1", []model.Post{post("p1", 90, "u1")}, profile)

			Convey("Then a 0.9 score should fall back", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusFallback)
				So(res.RankedPosts[0].Score, ShouldEqual, 0.72)
			})
		})
	})
}

func TestEngine_RankErrors(t *testing.T) {
	ctx := context.Background()
	posts := []model.Post{post("p1", 1, "x"), post("p2", 1, "x")}

	Convey("Given a model that fails", t, func() {
		boom := errors.New("boom")
		_, err := newEngine(&stub{err: boom}).Rank(ctx, "user1", posts, profile)

		Convey("Then the failure should be propagated", func() {
			So(errors.Is(err, ranking.ErrModel), ShouldBeTrue)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})

	Convey("Given a model that returns too few scores", t, func() {
		_, err := newEngine(&stub{scores: []float64{0.9}}).Rank(ctx, "user1", posts, profile)

		Convey("Then the request should fail", func() {
			So(errors.Is(err, ranking.ErrScoreCount), ShouldBeTrue)
		})
	})

	Convey("Given a model that returns NaN", t, func() {
		_, err := newEngine(&stub{scores: []float64{0.9, math.NaN()}}).Rank(ctx, "user1", posts, profile)

		Convey("Then the request should fail", func() {
			So(errors.Is(err, ranking.ErrNonFiniteScore), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "p2")
		})
	})
}

func TestEngine_BundledModels(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"lightgbm.yaml", "linear.yaml"} {
		Convey("Given the bundled "+name+" model", t, func() {
			m, _, err := scoring.Load(ctx, filepath.Join("..", "..", "..", "models", name), encoding.DefaultColumns)
			So(err, ShouldBeNil)
			e := newEngine(m)

			Convey("Then a high-signal post should score above 0.8", func() {
				res, err := e.Rank(ctx, "user1", []model.Post{post("p1", 90, "u1", "ml")}, profile)
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusRanked)
				So(res.RankedPosts[0].Score, ShouldBeGreaterThan, 0.8)
			})

			Convey("Then an irrelevant post should fall below 0.5", func() {
				res, err := e.Rank(ctx, "user1", []model.Post{post("p2", 10, "u9", "random")}, profile)
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusFallback)
				So(res.RankedPosts[0].Score, ShouldBeLessThan, 0.5)
			})

			Convey("Then a low-karma stranger should still be returned", func() {
				res, err := e.Rank(ctx, "user1", []model.Post{post("p3", 2, "u9", "unknown")}, profile)
				So(err, ShouldBeNil)
				So(len(res.RankedPosts), ShouldEqual, 1)
			})

			Convey("Then a mixed batch should keep only the relevant post", func() {
				res, err := e.Rank(ctx, "user1", []model.Post{
					post("p2", 10, "u9", "random"),
					post("p1", 90, "u1", "ml"),
					post("p3", 2, "u9", "unknown"),
				}, profile)
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusRanked)
				So(ids(res.RankedPosts), ShouldResemble, []string{"p1"})
			})
		})
	}
}
