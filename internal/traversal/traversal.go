// Package traversal walks the materialized scene graph of one story.
//
// A Graph is built once per reading session from the full scene set and is
// never mutated. Reader state is a State value held by the caller; every
// operation is a pure function of the graph and that state.
package traversal

import (
	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
)

// State is the reader's position: the scene currently shown.
type State struct {
	SceneID  string `json:"sceneId"`
	Terminal bool   `json:"terminal"`
}

// Graph is an arena of scenes keyed by id.
type Graph struct {
	rootID string
	scenes map[string]*models.SceneView
	order  []string
}

// New materializes a graph from the reading payload of a story.
func New(view models.StoryScenes) *Graph {
	g := &Graph{
		rootID: view.RootSceneID,
		scenes: make(map[string]*models.SceneView, len(view.Scenes)),
		order:  make([]string, 0, len(view.Scenes)),
	}
	for i := range view.Scenes {
		s := &view.Scenes[i]
		if _, dup := g.scenes[s.ID]; dup {
			continue
		}
		g.scenes[s.ID] = s
		g.order = append(g.order, s.ID)
	}
	return g
}

// Len returns the number of scenes in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Scene returns the scene with the given id.
func (g *Graph) Scene(id string) (models.SceneView, bool) {
	s, ok := g.scenes[id]
	if !ok {
		return models.SceneView{}, false
	}
	return *s, true
}

// Start returns the initial state at the entry scene.
func (g *Graph) Start() (State, error) {
	if g.rootID == "" {
		return State{}, apperrors.InvalidState("story has no entry scene yet")
	}
	return g.at(g.rootID)
}

// At returns the state for an arbitrary scene of the graph, used to resume a session.
func (g *Graph) At(sceneID string) (State, error) {
	if _, ok := g.scenes[sceneID]; !ok {
		return State{}, apperrors.NotFound("scene %s is not part of this story", sceneID)
	}
	return g.at(sceneID)
}

func (g *Graph) at(id string) (State, error) {
	s, ok := g.scenes[id]
	if !ok {
		return State{SceneID: id, Terminal: true}, apperrors.DataIntegrity("scene %s is referenced but missing from the story", id)
	}
	return State{SceneID: id, Terminal: s.HasEnded}, nil
}

// Choices returns the choices offered at state. An ending scene offers none.
func (g *Graph) Choices(state State) []models.ChoiceView {
	s, ok := g.scenes[state.SceneID]
	if !ok || s.HasEnded {
		return nil
	}
	out := make([]models.ChoiceView, len(s.Choices))
	copy(out, s.Choices)
	return out
}

// Choose follows the choice with choiceID from state.
func (g *Graph) Choose(state State, choiceID string) (State, error) {
	choices, err := g.available(state)
	if err != nil {
		return state, err
	}
	for _, c := range choices {
		if c.ID == choiceID {
			return g.follow(state, c)
		}
	}
	return state, apperrors.InvalidState("choice %s is not available at scene %s", choiceID, state.SceneID)
}

// ChooseAt follows the choice at position index from state.
func (g *Graph) ChooseAt(state State, index int) (State, error) {
	choices, err := g.available(state)
	if err != nil {
		return state, err
	}
	if index < 0 || index >= len(choices) {
		return state, apperrors.InvalidState("scene %s has no choice at position %d", state.SceneID, index)
	}
	return g.follow(state, choices[index])
}

func (g *Graph) available(state State) ([]models.ChoiceView, error) {
	s, ok := g.scenes[state.SceneID]
	if !ok {
		return nil, apperrors.DataIntegrity("scene %s is missing from the story", state.SceneID)
	}
	if s.HasEnded {
		return nil, apperrors.InvalidState("scene %s is an ending", state.SceneID)
	}
	return s.Choices, nil
}

func (g *Graph) follow(from State, c models.ChoiceView) (State, error) {
	if c.TargetSceneID == "" {
		return State{SceneID: from.SceneID, Terminal: true}, apperrors.DataIntegrity("choice %s has no target scene", c.ID)
	}
	return g.at(c.TargetSceneID)
}

// Replay applies choiceIDs in order from the entry scene.
func (g *Graph) Replay(choiceIDs []string) (State, error) {
	state, err := g.Start()
	if err != nil {
		return state, err
	}
	for _, id := range choiceIDs {
		if state, err = g.Choose(state, id); err != nil {
			return state, err
		}
	}
	return state, nil
}

// Chooser picks the index of the next choice among the choices offered.
type Chooser func(scene models.SceneView, choices []models.ChoiceView) int

// FirstChoice always takes the first available choice.
func FirstChoice(models.SceneView, []models.ChoiceView) int { return 0 }

// Walk follows pick from the entry scene and returns the visited states.
// It stops at an ending, at a scene without choices, or after maxSteps
// transitions; maxSteps <= 0 means the scene count.
func (g *Graph) Walk(pick Chooser, maxSteps int) ([]State, error) {
	if maxSteps <= 0 {
		maxSteps = g.Len()
	}
	state, err := g.Start()
	if err != nil {
		return nil, err
	}
	path := []State{state}
	for step := 0; step < maxSteps && !state.Terminal; step++ {
		choices := g.Choices(state)
		if len(choices) == 0 {
			break
		}
		scene := *g.scenes[state.SceneID]
		if state, err = g.ChooseAt(state, pick(scene, choices)); err != nil {
			return path, err
		}
		path = append(path, state)
	}
	return path, nil
}
