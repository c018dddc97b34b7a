package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Scene is a node of a story's branching structure stored in MongoDB
type Scene struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	StoryID   primitive.ObjectID  `json:"story_id" bson:"story_id"`
	ParentID  *primitive.ObjectID `json:"parent_id" bson:"parent_id"`
	AuthorID  string              `json:"author_id" bson:"author_id"`
	Content   string              `json:"content" bson:"content"`
	Choices   []Choice            `json:"choices" bson:"choices"`
	HasEnded  bool                `json:"has_ended" bson:"has_ended"`
	Likes     []string            `json:"-" bson:"likes"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" bson:"updated_at"`
}

// Choice is a labeled edge from its owning scene to a target scene
type Choice struct {
	ID            primitive.ObjectID `json:"id" bson:"_id"`
	Text          string             `json:"text" bson:"text"`
	TargetSceneID primitive.ObjectID `json:"target_scene_id" bson:"target_scene_id"`
}

// IsRoot reports whether the scene has no parent
func (s *Scene) IsRoot() bool {
	return s.ParentID == nil || s.ParentID.IsZero()
}

// LikesCount returns the number of users liking the scene
func (s *Scene) LikesCount() int {
	return len(s.Likes)
}

// CreateSceneRequest defines the request body for creating a scene
type CreateSceneRequest struct {
	StoryID  string `json:"storyId" validate:"required"`
	ParentID string `json:"parentId,omitempty"`
	Content  string `json:"content" validate:"required,min=1"`
	IsEnding bool   `json:"isEnding"`
}

// AddChoiceRequest defines the request body for wiring a choice between scenes
type AddChoiceRequest struct {
	Text          string `json:"text" validate:"required,min=1,max=300"`
	TargetSceneID string `json:"targetSceneId" validate:"required"`
}

// CreateBranchRequest defines the request body for adding a child scene reached by a new choice
type CreateBranchRequest struct {
	ChoiceText string `json:"choiceText" validate:"required,min=1,max=300"`
	Content    string `json:"content" validate:"required,min=1"`
	IsEnding   bool   `json:"isEnding"`
}

// StoryScenes is the materialized graph of one story, the shape served to readers
type StoryScenes struct {
	Title       string      `json:"title"`
	RootSceneID string      `json:"rootSceneId"`
	Scenes      []SceneView `json:"scenes"`
}

// SceneView is a scene as consumed by the traversal engine
type SceneView struct {
	ID       string       `json:"id"`
	ParentID string       `json:"parentId,omitempty"`
	AuthorID string       `json:"authorId,omitempty"`
	Text     string       `json:"text"`
	HasEnded bool         `json:"hasEnded"`
	Choices  []ChoiceView `json:"choices"`
}

// ChoiceView is a choice as consumed by the traversal engine
type ChoiceView struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	TargetSceneID string `json:"targetSceneId"`
}

// View converts the stored scene into its traversal form
func (s *Scene) View() SceneView {
	view := SceneView{
		ID:       s.ID.Hex(),
		AuthorID: s.AuthorID,
		Text:     s.Content,
		HasEnded: s.HasEnded,
		Choices:  make([]ChoiceView, 0, len(s.Choices)),
	}
	if !s.IsRoot() {
		view.ParentID = s.ParentID.Hex()
	}
	for _, c := range s.Choices {
		cv := ChoiceView{ID: c.ID.Hex(), Text: c.Text}
		if !c.TargetSceneID.IsZero() {
			cv.TargetSceneID = c.TargetSceneID.Hex()
		}
		view.Choices = append(view.Choices, cv)
	}
	return view
}

// NewStoryScenes builds the reading payload for a story and its scenes
func NewStoryScenes(story *Story, scenes []Scene) StoryScenes {
	out := StoryScenes{
		Title:  story.Title,
		Scenes: make([]SceneView, 0, len(scenes)),
	}
	if story.HasEntryScene() {
		out.RootSceneID = story.EntrySceneID.Hex()
	}
	for i := range scenes {
		out.Scenes = append(out.Scenes, scenes[i].View())
	}
	return out
}
