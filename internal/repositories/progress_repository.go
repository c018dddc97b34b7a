package repositories

import (
	"context"
	"time"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository defines the interface for reading progress
type ProgressRepository interface {
	// RecordStep upserts the (user, story) row. A completed row stays completed
	// and steps accumulate.
	RecordStep(ctx context.Context, userID, storyID, sceneID string, completed bool, steps int) error
	ListProgress(ctx context.Context, userID, status string, limit int) ([]models.StoryProgress, error)
}

// PostgresProgressRepository implements ProgressRepository for PostgreSQL
type PostgresProgressRepository struct {
	db *gorm.DB
}

var _ ProgressRepository = (*PostgresProgressRepository)(nil)

// NewPostgresProgressRepository creates a new PostgresProgressRepository
func NewPostgresProgressRepository(db *gorm.DB) *PostgresProgressRepository {
	return &PostgresProgressRepository{db: db}
}

// RecordStep performs an INSERT ... ON CONFLICT on the unique (user_id, story_id) index
func (r *PostgresProgressRepository) RecordStep(ctx context.Context, userID, storyID, sceneID string, completed bool, steps int) error {
	now := time.Now()
	progress := &models.StoryProgress{
		UserID:      userID,
		StoryID:     storyID,
		Status:      models.ProgressInProgress,
		LastSceneID: sceneID,
		Steps:       steps,
	}
	if completed {
		progress.Status = models.ProgressCompleted
		progress.CompletedAt = &now
	}

	table := progress.TableName()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "story_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":        gorm.Expr("CASE WHEN "+table+".status = ? THEN "+table+".status ELSE excluded.status END", models.ProgressCompleted),
			"last_scene_id": gorm.Expr("excluded.last_scene_id"),
			"steps":         gorm.Expr(table + ".steps + excluded.steps"),
			"completed_at":  gorm.Expr("COALESCE(" + table + ".completed_at, excluded.completed_at)"),
			"updated_at":    now,
		}),
	}).Create(progress).Error
	if err != nil {
		return apperrors.Internal("failed to record reading progress", err)
	}
	return nil
}

// ListProgress returns a reader's progress rows, most recently updated first
func (r *PostgresProgressRepository) ListProgress(ctx context.Context, userID, status string, limit int) ([]models.StoryProgress, error) {
	rows := []models.StoryProgress{}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("updated_at DESC").Limit(models.NormalizeLimit(limit)).Find(&rows).Error; err != nil {
		return nil, apperrors.Internal("failed to load reading progress", err)
	}
	return rows, nil
}
