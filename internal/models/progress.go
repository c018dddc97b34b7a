package models

import "time"

// Reading progress statuses
const (
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// StoryProgress tracks one reader's position in one story (PostgreSQL)
type StoryProgress struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      string     `json:"user_id" gorm:"size:128;uniqueIndex:idx_progress_user_story"`
	StoryID     string     `json:"story_id" gorm:"size:24;uniqueIndex:idx_progress_user_story"`
	Status      string     `json:"status" gorm:"size:20;default:'in_progress';index"`
	LastSceneID string     `json:"last_scene_id" gorm:"size:24"`
	Steps       int        `json:"steps"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ChooseRequest defines the request body for taking a choice in a reading session
type ChooseRequest struct {
	SceneID  string `json:"sceneId" validate:"required"`
	ChoiceID string `json:"choiceId" validate:"required"`
}

// ReplayRequest defines the request body for replaying choices from the entry scene
type ReplayRequest struct {
	ChoiceIDs []string `json:"choiceIds" validate:"dive,required"`
}

// ReadingStep is the state of a reading session after a start, choice or replay
type ReadingStep struct {
	Scene    SceneView    `json:"scene"`
	Choices  []ChoiceView `json:"choices"`
	Terminal bool         `json:"terminal"`
}

// TableName overrides the table name used by StoryProgress
func (StoryProgress) TableName() string {
	return "story_progress"
}
