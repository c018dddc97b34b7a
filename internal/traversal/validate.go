package traversal

import (
	"fmt"

	"github.com/woventales/backend/internal/apperrors"
)

// Violation is one broken structural invariant of a story graph.
type Violation struct {
	SceneID string `json:"sceneId,omitempty"`
	Rule    string `json:"rule"`
	Detail  string `json:"detail"`
}

// Violation rules
const (
	RuleEntryMissing   = "entry_missing"
	RuleEntryHasParent = "entry_has_parent"
	RuleMultipleRoots  = "multiple_roots"
	RuleDanglingParent = "dangling_parent"
	RuleParentCycle    = "parent_cycle"
	RuleDanglingChoice = "dangling_choice"
)

// Report is the result of a graph validation.
type Report struct {
	Scenes     int         `json:"scenes"`
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Validate checks the tree and choice invariants of the graph: a single
// parentless scene equal to the entry scene, parent chains that reach it in
// at most Len() steps, and choices that resolve inside the graph.
func (g *Graph) Validate() Report {
	report := Report{Scenes: g.Len(), Violations: []Violation{}}
	add := func(sceneID, rule, format string, args ...any) {
		report.Violations = append(report.Violations, Violation{SceneID: sceneID, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	if g.Len() > 0 {
		root, ok := g.scenes[g.rootID]
		switch {
		case g.rootID == "" || !ok:
			add(g.rootID, RuleEntryMissing, "entry scene %q is not part of the story", g.rootID)
		case root.ParentID != "":
			add(root.ID, RuleEntryHasParent, "entry scene has parent %s", root.ParentID)
		}
	}

	for _, id := range g.order {
		s := g.scenes[id]
		if s.ParentID == "" && id != g.rootID {
			add(id, RuleMultipleRoots, "scene has no parent but is not the entry scene")
		}
		if s.ParentID != "" {
			g.checkAncestry(id, add)
		}
		for _, c := range s.Choices {
			if _, ok := g.scenes[c.TargetSceneID]; !ok {
				add(id, RuleDanglingChoice, "choice %s targets unknown scene %q", c.ID, c.TargetSceneID)
			}
		}
	}

	report.Valid = len(report.Violations) == 0
	return report
}

func (g *Graph) checkAncestry(id string, add func(sceneID, rule, format string, args ...any)) {
	cur := id
	for steps := 0; steps <= g.Len(); steps++ {
		s, ok := g.scenes[cur]
		if !ok {
			add(id, RuleDanglingParent, "ancestor %s is not part of the story", cur)
			return
		}
		if s.ParentID == "" {
			return
		}
		cur = s.ParentID
	}
	add(id, RuleParentCycle, "parent chain does not reach a root within %d steps", g.Len())
}

// Err converts a failed report into a DataIntegrityError.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	v := r.Violations[0]
	return apperrors.DataIntegrity("story graph invalid (%d violations), first: %s at %s: %s", len(r.Violations), v.Rule, v.SceneID, v.Detail)
}
