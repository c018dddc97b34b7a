package traversal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
)

func rules(r Report) []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Rule)
	}
	return out
}

func TestValidateWellFormed(t *testing.T) {
	report := New(doorStory()).Validate()

	assert.True(t, report.Valid)
	assert.Equal(t, 3, report.Scenes)
	assert.NoError(t, report.Err())
}

func TestValidateEmptyStory(t *testing.T) {
	report := New(models.StoryScenes{}).Validate()

	assert.True(t, report.Valid)
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(v *models.StoryScenes)
		rule   string
	}{
		{
			name:   "entry not in graph",
			mutate: func(v *models.StoryScenes) { v.RootSceneID = "elsewhere" },
			rule:   RuleEntryMissing,
		},
		{
			name:   "entry has parent",
			mutate: func(v *models.StoryScenes) { v.Scenes[0].ParentID = "leave" },
			rule:   RuleEntryHasParent,
		},
		{
			name:   "second root",
			mutate: func(v *models.StoryScenes) { v.Scenes[2].ParentID = "" },
			rule:   RuleMultipleRoots,
		},
		{
			name:   "dangling parent",
			mutate: func(v *models.StoryScenes) { v.Scenes[2].ParentID = "ghost" },
			rule:   RuleDanglingParent,
		},
		{
			name: "dangling choice",
			mutate: func(v *models.StoryScenes) {
				v.Scenes[0].Choices[1].TargetSceneID = "ghost"
			},
			rule: RuleDanglingChoice,
		},
		{
			name: "parent cycle",
			mutate: func(v *models.StoryScenes) {
				v.Scenes[1].ParentID = "leave"
				v.Scenes[2].ParentID = "through"
			},
			rule: RuleParentCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := doorStory()
			tt.mutate(&view)

			report := New(view).Validate()
			require.False(t, report.Valid)
			assert.Contains(t, rules(report), tt.rule)
			assert.True(t, errors.Is(report.Err(), apperrors.ErrDataIntegrity))
		})
	}
}
