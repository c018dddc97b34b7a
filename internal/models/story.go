package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Story statuses
const (
	StoryStatusDraft     = "draft"
	StoryStatusPublished = "published"
)

// Story represents an authored branching story stored in MongoDB
type Story struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Title         string              `json:"title" bson:"title"`
	AuthorID      string              `json:"author_id" bson:"author_id"`
	Genre         string              `json:"genre,omitempty" bson:"genre,omitempty"`
	CoverImageURL string              `json:"cover_image_url,omitempty" bson:"cover_image_url,omitempty"`
	Status        string              `json:"status" bson:"status"`
	Text          string              `json:"text,omitempty" bson:"text,omitempty"`
	EntrySceneID  *primitive.ObjectID `json:"entry_scene_id" bson:"entry_scene_id"`
	Likes         []string            `json:"-" bson:"likes"`
	Ratings       []Rating            `json:"-" bson:"ratings"`
	CommentsCount int                 `json:"comments_count" bson:"comments_count"`
	Views         int                 `json:"views" bson:"views"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" bson:"updated_at"`
}

// Rating is one user's live rating of a story
type Rating struct {
	UserID string `json:"user_id" bson:"user_id"`
	Value  int    `json:"value" bson:"value"`
}

// HasEntryScene reports whether the story already has a root scene
func (s *Story) HasEntryScene() bool {
	return s.EntrySceneID != nil && !s.EntrySceneID.IsZero()
}

// Summary projects the story into its listing form
func (s *Story) Summary() StorySummary {
	avg, count := AverageRating(s.Ratings)
	summary := StorySummary{
		ID:            s.ID.Hex(),
		Title:         s.Title,
		AuthorID:      s.AuthorID,
		Genre:         s.Genre,
		CoverImageURL: s.CoverImageURL,
		Status:        s.Status,
		LikesCount:    len(s.Likes),
		AvgRating:     avg,
		RatingsCount:  count,
		CommentsCount: s.CommentsCount,
		Views:         s.Views,
		CreatedAt:     s.CreatedAt,
	}
	if s.HasEntryScene() {
		summary.EntrySceneID = s.EntrySceneID.Hex()
	}
	return summary
}

// StorySummary is the listing/read model of a story. Numeric fields are never absent.
type StorySummary struct {
	ID            string    `json:"id" bson:"_id"`
	Title         string    `json:"title" bson:"title"`
	AuthorID      string    `json:"author_id" bson:"author_id"`
	Genre         string    `json:"genre,omitempty" bson:"genre,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty" bson:"cover_image_url,omitempty"`
	Status        string    `json:"status" bson:"status"`
	EntrySceneID  string    `json:"entry_scene_id,omitempty" bson:"-"`
	LikesCount    int       `json:"likes_count" bson:"likes_count"`
	AvgRating     float64   `json:"avg_rating" bson:"avg_rating"`
	RatingsCount  int       `json:"ratings_count" bson:"ratings_count"`
	CommentsCount int       `json:"comments_count" bson:"comments_count"`
	Views         int       `json:"views" bson:"views"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// AverageRating returns the arithmetic mean of the rating values and their count.
// It is 0 when there are no ratings.
func AverageRating(ratings []Rating) (float64, int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Value
	}
	return float64(sum) / float64(len(ratings)), len(ratings)
}

// StoryAttrs are the optional attributes accepted at story creation
type StoryAttrs struct {
	Genre         string
	CoverImageURL string
	Status        string
	Text          string
}

// StoryFilter narrows a story listing. A non-nil empty IDs matches nothing.
type StoryFilter struct {
	Status     string
	Genre      string
	AuthorID   string
	IDs        []string
	ExcludeIDs []string
}

// StorySort selects the ordering of a story listing.
// Every ordering ends with _id desc so ties are deterministic.
type StorySort string

const (
	// SortNewest orders by created_at desc, _id desc
	SortNewest StorySort = "newest"
	// SortPopular orders by likes_count desc, views desc, created_at desc, _id desc
	SortPopular StorySort = "popular"
	// SortRating orders by avg_rating desc, ratings_count desc, created_at desc, _id desc
	SortRating StorySort = "rating"
)

// ParseStorySort maps a query value to a sort key; empty means newest
func ParseStorySort(v string) (StorySort, bool) {
	switch StorySort(v) {
	case "", SortNewest:
		return SortNewest, true
	case SortPopular, SortRating:
		return StorySort(v), true
	}
	return "", false
}

// Listing limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// NormalizeLimit clamps a requested listing limit
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// CreateStoryRequest defines the request body for the composite story creation
type CreateStoryRequest struct {
	Title         string `json:"title" validate:"required,min=1,max=200"`
	Content       string `json:"content" validate:"required,min=1"`
	IsEnding      bool   `json:"isEnding"`
	Genre         string `json:"genre,omitempty" validate:"omitempty,max=50"`
	CoverImageURL string `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	Status        string `json:"status,omitempty" validate:"omitempty,oneof=draft published"`
	Text          string `json:"text,omitempty"`
}

// EngagementSummary is the read model consumed by dashboard and profile collaborators
type EngagementSummary struct {
	LikesCount    int     `json:"likesCount"`
	AvgRating     float64 `json:"avgRating"`
	RatingsCount  int     `json:"ratingsCount"`
	CommentsCount int     `json:"commentsCount"`
	Views         int     `json:"views"`
}

// LikeResult is returned by like toggles on stories and scenes
type LikeResult struct {
	LikesCount int  `json:"likesCount"`
	Liked      bool `json:"liked"`
}

// RatingResult is returned by a rating upsert
type RatingResult struct {
	AvgRating    float64 `json:"avgRating"`
	RatingsCount int     `json:"ratingsCount"`
}

// RateStoryRequest defines the request body for rating a story
type RateStoryRequest struct {
	Value int `json:"value" validate:"required,min=1,max=5"`
}
