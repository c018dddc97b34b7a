package services

import (
	"context"
	"strings"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/metrics"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"go.uber.org/zap"
)

// Engagement aggregates likes, ratings, comments and views of stories
type Engagement struct {
	stories  repositories.StoryRepository
	scenes   repositories.SceneRepository
	comments repositories.CommentRepository
	authors  AuthorDirectory
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEngagement creates a new Engagement service
func NewEngagement(
	stories repositories.StoryRepository,
	scenes repositories.SceneRepository,
	comments repositories.CommentRepository,
	authors AuthorDirectory,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engagement {
	return &Engagement{
		stories:  stories,
		scenes:   scenes,
		comments: comments,
		authors:  authors,
		metrics:  m,
		logger:   logger.Named("Engagement"),
	}
}

// ToggleLike flips the user's like on a story
func (e *Engagement) ToggleLike(ctx context.Context, storyID, userID string) (models.LikeResult, error) {
	res, err := e.stories.ToggleLike(ctx, storyID, userID)
	if err != nil {
		return models.LikeResult{}, err
	}
	e.metrics.Engagement("story_like")
	e.logger.Debug("Story like toggled",
		zap.String("storyID", storyID), zap.String("userID", userID), zap.Bool("liked", res.Liked))
	return res, nil
}

// Rate sets the user's rating of a story, replacing any previous one
func (e *Engagement) Rate(ctx context.Context, storyID, userID string, value int) (models.RatingResult, error) {
	if value < 1 || value > 5 {
		return models.RatingResult{}, apperrors.Validation("rating must be between 1 and 5")
	}
	ratings, err := e.stories.UpsertRating(ctx, storyID, userID, value)
	if err != nil {
		return models.RatingResult{}, err
	}
	e.metrics.Engagement("rate")
	avg, count := models.AverageRating(ratings)
	return models.RatingResult{AvgRating: avg, RatingsCount: count}, nil
}

// AddComment stores a comment and bumps the story's comment count
func (e *Engagement) AddComment(ctx context.Context, storyID, authorID, text, sceneID string) (*models.CommentResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("comment text is required")
	}
	logFields := []zap.Field{zap.String("storyID", storyID), zap.String("authorID", authorID)}

	story, err := e.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{
		StoryID:  story.ID.Hex(),
		AuthorID: authorID,
		Text:     text,
	}
	if sceneID != "" {
		scene, err := e.scenes.GetSceneByID(ctx, sceneID)
		if err != nil {
			return nil, err
		}
		if scene.StoryID != story.ID {
			return nil, apperrors.Conflict("scene %s belongs to another story", sceneID)
		}
		hex := scene.ID.Hex()
		comment.SceneID = &hex
	}

	if err := e.comments.CreateComment(ctx, comment); err != nil {
		e.logger.Error("Failed to create comment", append(logFields, zap.Error(err))...)
		return nil, err
	}
	if err := e.stories.IncrementCommentsCount(ctx, comment.StoryID); err != nil {
		e.logger.Error("Failed to increment comments count, removing comment", append(logFields, zap.Error(err))...)
		rctx, cancel := rollbackContext(ctx)
		defer cancel()
		if delErr := e.comments.DeleteComment(rctx, comment.ID); delErr != nil {
			e.logger.Error("Failed to remove comment", append(logFields, zap.Error(delErr))...)
		}
		return nil, err
	}
	e.metrics.Engagement("comment")

	resp := &models.CommentResponse{Comment: *comment, Author: models.UnknownAuthor(authorID)}
	authors, err := e.authors.ResolveAuthors(ctx, []string{authorID})
	if err != nil {
		e.logger.Warn("Failed to resolve comment author", append(logFields, zap.Error(err))...)
		return resp, nil
	}
	resp.Author = authors[authorID]
	return resp, nil
}

// ListComments returns the newest comments of a story with their authors
func (e *Engagement) ListComments(ctx context.Context, storyID string, limit int) ([]models.CommentResponse, error) {
	story, err := e.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	comments, err := e.comments.GetCommentsByStoryID(ctx, story.ID.Hex(), limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	authors, err := e.authors.ResolveAuthors(ctx, ids)
	if err != nil {
		e.logger.Warn("Failed to resolve comment authors", zap.String("storyID", storyID), zap.Error(err))
		authors = nil
	}

	out := make([]models.CommentResponse, 0, len(comments))
	for _, c := range comments {
		author, ok := authors[c.AuthorID]
		if !ok {
			author = models.UnknownAuthor(c.AuthorID)
		}
		out = append(out, models.CommentResponse{Comment: c, Author: author})
	}
	return out, nil
}

// RecordView counts one read of a story
func (e *Engagement) RecordView(ctx context.Context, storyID string) error {
	if err := e.stories.IncrementViews(ctx, storyID); err != nil {
		return err
	}
	e.metrics.Engagement("view")
	return nil
}

// GetEngagementSummary projects the engagement aggregate of a story
func (e *Engagement) GetEngagementSummary(ctx context.Context, storyID string) (models.EngagementSummary, error) {
	story, err := e.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return models.EngagementSummary{}, err
	}
	avg, count := models.AverageRating(story.Ratings)
	return models.EngagementSummary{
		LikesCount:    len(story.Likes),
		AvgRating:     avg,
		RatingsCount:  count,
		CommentsCount: story.CommentsCount,
		Views:         story.Views,
	}, nil
}
