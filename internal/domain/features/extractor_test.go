package features_test

import (
	"testing"
	"time"

	"github.com/okian/feedrank/internal/domain/features"
	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/timematch"
	. "github.com/smartystreets/goconvey/convey"
)

var profile = model.UserProfile{
	BranchesOfInterest: []string{"AI", "DS"},
	TagsFollowed:       []string{"coding", "python", "ai", "ml"},
	Buddies:            []string{"stu_1010", "stu_2020", "stu_3030"},
	ActiveHours:        []string{"07:00-09:00", "20:00-23:00"},
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestExtractor_Extract(t *testing.T) {
	Convey("Given an extractor with a fixed clock", t, func() {
		ex := features.NewExtractor(features.WithClock(fixedClock("2025-05-27T09:30:00Z")))

		Convey("When a buddy posts a followed tag inside active hours", func() {
			post := model.Post{
				PostID: "p1", AuthorID: "stu_1010", Tags: []string{"ai"},
				ContentType: "text", Karma: 90, CreatedAt: "2025-05-27T07:30:00Z",
			}
			r := ex.Extract(post, profile)

			Convey("Then every feature should be derived", func() {
				So(r.PostID, ShouldEqual, "p1")
				So(r.Karma, ShouldEqual, 90)
				So(r.TimeMatchScore, ShouldEqual, 1.0)
				So(r.UserFollowsTag, ShouldBeTrue)
				So(r.IsBuddyPost, ShouldBeTrue)
				So(r.ContentType, ShouldEqual, features.ContentText)
				So(r.WeekdayType, ShouldEqual, features.Weekday)
				So(r.TimePeriod, ShouldEqual, features.Morning)
				So(r.KarmaBucket, ShouldEqual, features.KarmaHigh)
				So(r.TimestampValid, ShouldBeTrue)
			})

			Convey("And the supplementary signals should follow", func() {
				So(r.BuddyFollowedTag, ShouldBeTrue)
				So(r.PostHour, ShouldEqual, 7)
				So(r.RecencyHours, ShouldAlmostEqual, 2.0, 1e-9)
				So(r.TimeWeightedKarma, ShouldAlmostEqual, 45.0, 1e-9)
			})
		})

		Convey("When a stranger posts an unfollowed tag on a Sunday afternoon", func() {
			post := model.Post{
				PostID: "p2", AuthorID: "stu_4040", Tags: []string{"travel"},
				ContentType: "video", Karma: 50, CreatedAt: "2025-06-01T14:00:00Z",
			}
			r := ex.Extract(post, profile)

			Convey("Then relationship flags should be false", func() {
				So(r.UserFollowsTag, ShouldBeFalse)
				So(r.IsBuddyPost, ShouldBeFalse)
				So(r.BuddyFollowedTag, ShouldBeFalse)
			})

			Convey("And calendar features should reflect the weekend", func() {
				So(r.WeekdayType, ShouldEqual, features.Weekend)
				So(r.TimePeriod, ShouldEqual, features.Afternoon)
				So(r.KarmaBucket, ShouldEqual, features.KarmaMedium)
			})

			Convey("And a post newer than the clock should use the minimum recency", func() {
				So(r.RecencyHours, ShouldEqual, 0.01)
				So(r.TimeWeightedKarma, ShouldAlmostEqual, 5000.0, 1e-6)
			})
		})

		Convey("When the timestamp cannot be parsed", func() {
			post := model.Post{
				PostID: "p3", AuthorID: "stu_2020", Tags: []string{"ml"},
				ContentType: "image", Karma: 10, CreatedAt: "27/05/2025 07:30",
			}
			r := ex.Extract(post, profile)

			Convey("Then all time features should degrade together", func() {
				So(r.TimestampValid, ShouldBeFalse)
				So(r.TimeMatchScore, ShouldEqual, 0.0)
				So(r.WeekdayType, ShouldEqual, features.WeekdayUnknown)
				So(r.TimePeriod, ShouldEqual, features.PeriodUnknown)
				So(r.PostHour, ShouldEqual, -1)
				So(r.RecencyHours, ShouldEqual, 0.0)
			})

			Convey("And the other features should still be computed", func() {
				So(r.UserFollowsTag, ShouldBeTrue)
				So(r.IsBuddyPost, ShouldBeTrue)
				So(r.KarmaBucket, ShouldEqual, features.KarmaLow)
			})
		})

		Convey("When either tag list is empty", func() {
			post := model.Post{PostID: "p4", AuthorID: "x", CreatedAt: "2025-05-27T07:30:00Z"}

			Convey("Then user_follows_tag should be false", func() {
				So(ex.Extract(post, profile).UserFollowsTag, ShouldBeFalse)
				post.Tags = []string{"ai"}
				So(ex.Extract(post, model.UserProfile{}).UserFollowsTag, ShouldBeFalse)
			})
		})

		Convey("When extracting a batch", func() {
			posts := []model.Post{
				{PostID: "a", AuthorID: "stu_1010", Tags: []string{"ai"}, ContentType: "text", Karma: 5, CreatedAt: "2025-05-27T21:00:00Z"},
				{PostID: "b", AuthorID: "stu_9", Tags: []string{"food"}, ContentType: "image", Karma: 70, CreatedAt: "2025-05-27T13:30:00Z"},
				{PostID: "c", AuthorID: "stu_3030", Tags: nil, ContentType: "gif", Karma: 40, CreatedAt: "bad"},
			}
			batch := ex.ExtractBatch(posts, profile)

			Convey("Then records should match single extraction in input order", func() {
				So(len(batch), ShouldEqual, len(posts))
				for i, p := range posts {
					So(batch[i], ShouldResemble, ex.Extract(p, profile))
				}
			})

			Convey("And extraction should be deterministic", func() {
				So(ex.ExtractBatch(posts, profile), ShouldResemble, batch)
			})
		})
	})

	Convey("Given an extractor with a custom time match calculator", t, func() {
		ex := features.NewExtractor(features.WithTimeMatch(timematch.New(timematch.WithDecayMinutes(300))))
		post := model.Post{PostID: "p", CreatedAt: "2025-05-27T12:00:00Z"}

		Convey("Then the calculator's decay should be used", func() {
			So(ex.Extract(post, model.UserProfile{ActiveHours: []string{"07:00-09:00"}}).TimeMatchScore, ShouldAlmostEqual, 0.4, 1e-9)
		})
	})
}

func TestBuckets(t *testing.T) {
	Convey("Given karma values", t, func() {
		Convey("Then they should bucket at 33 and 66", func() {
			So(features.BucketKarma(90), ShouldEqual, features.KarmaHigh)
			So(features.BucketKarma(50), ShouldEqual, features.KarmaMedium)
			So(features.BucketKarma(10), ShouldEqual, features.KarmaLow)
			So(features.BucketKarma(0), ShouldEqual, features.KarmaLow)
			So(features.BucketKarma(33), ShouldEqual, features.KarmaLow)
			So(features.BucketKarma(34), ShouldEqual, features.KarmaMedium)
			So(features.BucketKarma(66), ShouldEqual, features.KarmaMedium)
			So(features.BucketKarma(67), ShouldEqual, features.KarmaHigh)
		})
	})

	Convey("Given hours of the day", t, func() {
		Convey("Then they should map onto time periods", func() {
			expected := map[int]features.TimePeriod{
				0: features.Night, 4: features.Night, 5: features.Morning, 11: features.Morning,
				12: features.Afternoon, 16: features.Afternoon, 17: features.Evening,
				20: features.Evening, 21: features.Night, 23: features.Night,
			}
			for hour, period := range expected {
				So(features.PeriodOf(hour), ShouldEqual, period)
			}
		})
	})

	Convey("Given days of the week", t, func() {
		Convey("Then Saturday and Sunday should be the weekend", func() {
			So(features.WeekdayTypeOf(time.Monday), ShouldEqual, features.Weekday)
			So(features.WeekdayTypeOf(time.Friday), ShouldEqual, features.Weekday)
			So(features.WeekdayTypeOf(time.Saturday), ShouldEqual, features.Weekend)
			So(features.WeekdayTypeOf(time.Sunday), ShouldEqual, features.Weekend)
		})
	})
}
