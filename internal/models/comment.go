package models

import "time"

// Comment represents a comment on a story, optionally anchored to one of its scenes (PostgreSQL)
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	StoryID   string    `json:"story_id" gorm:"size:24;index"` // MongoDB ObjectID of the story as hex
	SceneID   *string   `json:"scene_id,omitempty" gorm:"size:24;index"`
	AuthorID  string    `json:"author_id" gorm:"index"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// CommentResponse is a comment enriched with its author's display identity
type CommentResponse struct {
	Comment
	Author UserCompact `json:"author"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Text    string `json:"text" validate:"required,min=1,max=2000"`
	SceneID string `json:"sceneId,omitempty"`
}
