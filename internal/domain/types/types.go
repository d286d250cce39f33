// Package types contains the JSON shapes exchanged over HTTP.
//
// Request fields are pointers so that a missing field can be told apart from
// a zero value during validation.
package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/okian/feedrank/internal/domain/model"
)

// Post is a candidate post on the wire.
type Post struct {
	PostID      *string   `json:"post_id" validate:"required"`
	AuthorID    *string   `json:"author_id" validate:"required"`
	Tags        *[]string `json:"tags" validate:"required"`
	ContentType *string   `json:"content_type" validate:"required"`
	Karma       *int      `json:"karma" validate:"required,min=0"`
	CreatedAt   *string   `json:"created_at" validate:"required"`
}

// UserProfile is the viewer profile on the wire.
type UserProfile struct {
	BranchesOfInterest *[]string `json:"branches_of_interest" validate:"required"`
	TagsFollowed       *[]string `json:"tags_followed" validate:"required"`
	Buddies            *[]string `json:"buddies" validate:"required"`
	ActiveHours        *[]string `json:"active_hours" validate:"required"`
}

// RankRequest is the body of POST /rank-feed. Field order is the order
// problems are reported in.
type RankRequest struct {
	UserID      *string      `json:"user_id" validate:"required"`
	UserProfile *UserProfile `json:"user_profile" validate:"required"`
	Posts       *[]Post      `json:"posts" validate:"required,dive"`
}

// RankedPost is one entry of a ranking response.
type RankedPost struct {
	PostID string  `json:"post_id"`
	Score  float64 `json:"score"`
}

// RankResponse is the body returned by POST /rank-feed.
type RankResponse struct {
	UserID      string       `json:"user_id"`
	RankedPosts []RankedPost `json:"ranked_posts"`
	Status      string       `json:"status"`
}

// FieldError describes one rejected field.
type FieldError struct {
	Loc  string `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Field error types.
const (
	ErrTypeMissing  = "missing"
	ErrTypeRange    = "value_error"
	ErrTypeTooLarge = "too_long"
)

// ValidationError carries every field problem found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Loc + ": " + f.Msg
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(loc, typ, msg string) {
	e.Fields = append(e.Fields, FieldError{Loc: loc, Msg: msg, Type: typ})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that every required field is present and in range.
// maxPosts <= 0 disables the batch size check. The returned error, if any, is
// a *ValidationError.
func (r *RankRequest) Validate(maxPosts int) error {
	v := &ValidationError{}

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate request: %w", err)
		}
		for _, fe := range fieldErrs {
			v.addFieldError(fe)
		}
	}

	if r.Posts != nil && maxPosts > 0 && len(*r.Posts) > maxPosts {
		v.add("posts", ErrTypeTooLarge, fmt.Sprintf("at most %d posts are allowed, got %d", maxPosts, len(*r.Posts)))
	}

	if len(v.Fields) > 0 {
		return v
	}
	return nil
}

// addFieldError translates a validator failure into a located field error.
// The namespace starts with the struct name, which is dropped.
func (e *ValidationError) addFieldError(fe validator.FieldError) {
	_, loc, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "required":
		e.add(loc, ErrTypeMissing, "field required")
	case "min":
		e.add(loc, ErrTypeRange, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
	default:
		e.add(loc, ErrTypeRange, fmt.Sprintf("failed %q check", fe.Tag()))
	}
}

// Domain converts a validated request into domain values.
func (r *RankRequest) Domain() (string, []model.Post, model.UserProfile) {
	var profile model.UserProfile
	if p := r.UserProfile; p != nil {
		profile = model.UserProfile{
			BranchesOfInterest: deref(p.BranchesOfInterest),
			TagsFollowed:       deref(p.TagsFollowed),
			Buddies:            deref(p.Buddies),
			ActiveHours:        deref(p.ActiveHours),
		}
	}

	var posts []model.Post
	if r.Posts != nil {
		posts = make([]model.Post, len(*r.Posts))
		for i, p := range *r.Posts {
			posts[i] = model.Post{
				PostID:      derefString(p.PostID),
				AuthorID:    derefString(p.AuthorID),
				Tags:        deref(p.Tags),
				ContentType: derefString(p.ContentType),
				CreatedAt:   derefString(p.CreatedAt),
			}
			if p.Karma != nil {
				posts[i].Karma = *p.Karma
			}
		}
	}
	return derefString(r.UserID), posts, profile
}

// NewRankRequest builds a fully populated request from domain values.
func NewRankRequest(userID string, posts []model.Post, profile model.UserProfile) RankRequest {
	wire := make([]Post, len(posts))
	for i := range posts {
		p := posts[i]
		wire[i] = Post{
			PostID:      &p.PostID,
			AuthorID:    &p.AuthorID,
			Tags:        nonNil(p.Tags),
			ContentType: &p.ContentType,
			Karma:       &p.Karma,
			CreatedAt:   &p.CreatedAt,
		}
	}
	return RankRequest{
		UserID: &userID,
		Posts:  &wire,
		UserProfile: &UserProfile{
			BranchesOfInterest: nonNil(profile.BranchesOfInterest),
			TagsFollowed:       nonNil(profile.TagsFollowed),
			Buddies:            nonNil(profile.Buddies),
			ActiveHours:        nonNil(profile.ActiveHours),
		},
	}
}

// NewRankResponse converts a ranking result for the wire. The ranked list is
// never null.
func NewRankResponse(res model.RankResult) RankResponse {
	out := RankResponse{
		UserID:      res.UserID,
		RankedPosts: make([]RankedPost, len(res.RankedPosts)),
		Status:      string(res.Status),
	}
	for i, p := range res.RankedPosts {
		out.RankedPosts[i] = RankedPost{PostID: p.PostID, Score: p.Score}
	}
	return out
}

func deref(s *[]string) []string {
	if s == nil {
		return nil
	}
	return *s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(s []string) *[]string {
	if s == nil {
		s = []string{}
	}
	return &s
}
