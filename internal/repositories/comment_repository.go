package repositories

import (
	"context"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	// GetCommentsByStoryID returns the newest comments first.
	GetCommentsByStoryID(ctx context.Context, storyID string, limit int) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id uint) error
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

var _ CommentRepository = (*PostgresCommentRepository)(nil)

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// CreateComment creates a new comment in PostgreSQL
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return apperrors.Internal("failed to create comment", err)
	}
	return nil
}

// GetCommentsByStoryID retrieves the comments of a story
func (r *PostgresCommentRepository) GetCommentsByStoryID(ctx context.Context, storyID string, limit int) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("created_at DESC").Order("id DESC").
		Limit(models.NormalizeLimit(limit)).
		Find(&comments).Error
	if err != nil {
		return nil, apperrors.Internal("failed to load comments", err)
	}
	return comments, nil
}

// DeleteComment deletes a comment by ID; used to roll back a comment whose counter update failed
func (r *PostgresCommentRepository) DeleteComment(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error; err != nil {
		return apperrors.Internal("failed to delete comment", err)
	}
	return nil
}
