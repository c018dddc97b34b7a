package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories/memstore"
	"github.com/woventales/backend/internal/traversal"
	"go.uber.org/zap"
)

type testEnv struct {
	store      *memstore.Store
	registry   *StoryRegistry
	graph      *SceneGraph
	engagement *Engagement
	reader     *Reader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	store := memstore.New()
	authors := NewAuthorDirectory(store.Users, log)
	graph := NewSceneGraph(store.Stories, store.Scenes, nil, log)
	engagement := NewEngagement(store.Stories, store.Scenes, store.Comments, authors, nil, log)
	return &testEnv{
		store:      store,
		registry:   NewStoryRegistry(store.Stories, store.Scenes, nil, log),
		graph:      graph,
		engagement: engagement,
		reader:     NewReader(graph, engagement, store.Progress, nil, log),
	}
}

func (e *testEnv) story(t *testing.T, title string) *models.Story {
	t.Helper()
	story, err := e.registry.CreateStory(context.Background(), "author", title, models.StoryAttrs{})
	require.NoError(t, err)
	return story
}

// theDoor builds the two-ending story: the root offers "Open it" and "Walk away".
func (e *testEnv) theDoor(t *testing.T) (story *models.Story, root, through, leave *models.Scene) {
	t.Helper()
	ctx := context.Background()
	story, root, err := e.registry.CreateStoryWithRoot(ctx, "author", models.CreateStoryRequest{
		Title:   "The Door",
		Content: "A door creaks open.",
	})
	require.NoError(t, err)

	through, _, err = e.graph.CreateBranch(ctx, root.ID.Hex(), "author", "Open it", "You step through.", true)
	require.NoError(t, err)
	leave, _, err = e.graph.CreateBranch(ctx, root.ID.Hex(), "author", "Walk away", "You leave.", true)
	require.NoError(t, err)
	return story, root, through, leave
}

func choiceID(t *testing.T, step models.ReadingStep, text string) string {
	t.Helper()
	for _, c := range step.Choices {
		if c.Text == text {
			return c.ID
		}
	}
	t.Fatalf("choice %q not offered", text)
	return ""
}

func TestStoryRegistry_CreateStory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.registry.CreateStory(ctx, "author", "   ", models.StoryAttrs{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	story, err := env.registry.CreateStory(ctx, "author", "Lighthouse", models.StoryAttrs{Genre: "mystery"})
	require.NoError(t, err)
	assert.False(t, story.HasEntryScene())
	assert.Equal(t, models.StoryStatusPublished, story.Status)

	got, err := env.registry.GetStory(ctx, story.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "mystery", got.Genre)

	_, err = env.registry.GetStory(ctx, "bad")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStoryRegistry_SetEntrySceneIsSetOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story := env.story(t, "Lighthouse")

	root, err := env.graph.CreateScene(ctx, story.ID.Hex(), "", "author", "Waves.", false)
	require.NoError(t, err)
	child, err := env.graph.CreateScene(ctx, story.ID.Hex(), root.ID.Hex(), "author", "Rocks.", false)
	require.NoError(t, err)

	assert.NoError(t, env.registry.SetEntryScene(ctx, story.ID.Hex(), root.ID.Hex()))
	assert.ErrorIs(t, env.registry.SetEntryScene(ctx, story.ID.Hex(), child.ID.Hex()), apperrors.ErrConflict)
}

func TestStoryRegistry_CreateStoryWithRoot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	story, root, err := env.registry.CreateStoryWithRoot(ctx, "author", models.CreateStoryRequest{
		Title: "Lighthouse", Content: "Waves.", IsEnding: true,
	})
	require.NoError(t, err)
	assert.True(t, root.HasEnded)
	assert.Equal(t, root.ID, *story.EntrySceneID)

	stored, err := env.registry.GetStory(ctx, story.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, root.ID.Hex(), stored.EntrySceneID.Hex())

	_, _, err = env.registry.CreateStoryWithRoot(ctx, "author", models.CreateStoryRequest{Title: "Empty", Content: " "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	count := 0
	for _, err := range env.registry.ListStories(ctx, models.StoryFilter{}, models.SortNewest, 0) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestStoryRegistry_ListStoriesSorts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.story(t, "A")
	b := env.story(t, "B")
	c := env.story(t, "C")

	_, err := env.engagement.ToggleLike(ctx, a.ID.Hex(), "u1")
	require.NoError(t, err)
	_, err = env.engagement.Rate(ctx, b.ID.Hex(), "u1", 5)
	require.NoError(t, err)
	_, err = env.engagement.Rate(ctx, c.ID.Hex(), "u1", 3)
	require.NoError(t, err)

	titles := func(sort models.StorySort) []string {
		var out []string
		for s, err := range env.registry.ListStories(ctx, models.StoryFilter{}, sort, 10) {
			require.NoError(t, err)
			out = append(out, s.Title)
		}
		return out
	}
	assert.Equal(t, []string{"C", "B", "A"}, titles(models.SortNewest))
	assert.Equal(t, []string{"A", "C", "B"}, titles(models.SortPopular))
	assert.Equal(t, []string{"B", "C", "A"}, titles(models.SortRating))
}

func TestStoryRegistry_FinishedAndOngoing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	door, _, _, _ := env.theDoor(t)
	open := env.story(t, "Open ended")

	finished, err := env.registry.ListFinished(ctx, models.SortNewest, 0)
	require.NoError(t, err)
	var ids []string
	for s, err := range finished {
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{door.ID.Hex()}, ids)

	ongoing, err := env.registry.ListOngoing(ctx, models.SortNewest, 0)
	require.NoError(t, err)
	ids = nil
	for s, err := range ongoing {
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{open.ID.Hex()}, ids)

	contributions, err := env.registry.Contributions(ctx, "author", models.SortNewest, 0)
	require.NoError(t, err)
	ids = nil
	for s, err := range contributions {
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{door.ID.Hex()}, ids)
}

func TestSceneGraph_SingleRootMatchesEntryScene(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story := env.story(t, "Lighthouse")

	root, err := env.graph.CreateScene(ctx, story.ID.Hex(), "", "author", "Waves.", false)
	require.NoError(t, err)
	_, err = env.graph.CreateScene(ctx, story.ID.Hex(), "", "author", "Second root.", false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	_, err = env.graph.CreateScene(ctx, story.ID.Hex(), root.ID.Hex(), "author", "Rocks.", false)
	require.NoError(t, err)

	scenes, err := env.graph.GetScenesForStory(ctx, story.ID.Hex())
	require.NoError(t, err)
	roots := 0
	for _, s := range scenes {
		if s.IsRoot() {
			roots++
			stored, err := env.registry.GetStory(ctx, story.ID.Hex())
			require.NoError(t, err)
			assert.Equal(t, stored.EntrySceneID.Hex(), s.ID.Hex())
		}
	}
	assert.Equal(t, 1, roots)

	report, err := env.graph.ValidateStoryGraph(ctx, story.ID.Hex())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Violations)
}

func TestSceneGraph_EndingSceneRejectsChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story, _, through, _ := env.theDoor(t)

	before, err := env.graph.GetScenesForStory(ctx, story.ID.Hex())
	require.NoError(t, err)

	_, err = env.graph.CreateScene(ctx, story.ID.Hex(), through.ID.Hex(), "author", "Beyond.", false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	after, err := env.graph.GetScenesForStory(ctx, story.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSceneGraph_CreateSceneErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, rootA, _, _ := env.theDoor(t)
	b := env.story(t, "Other")

	tests := []struct {
		name     string
		storyID  string
		parentID string
		content  string
		want     error
	}{
		{"empty content", a.ID.Hex(), rootA.ID.Hex(), " ", apperrors.ErrValidation},
		{"malformed story id", "nope", "", "x", apperrors.ErrValidation},
		{"missing story", "65a1b2c3d4e5f60718293a4b", "", "x", apperrors.ErrNotFound},
		{"missing parent", a.ID.Hex(), "65a1b2c3d4e5f60718293a4b", "x", apperrors.ErrNotFound},
		{"parent from another story", b.ID.Hex(), rootA.ID.Hex(), "x", apperrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.graph.CreateScene(ctx, tt.storyID, tt.parentID, "author", tt.content, false)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSceneGraph_ChildrenAndChoices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, root, through, leave := env.theDoor(t)
	other, otherRoot, err := env.registry.CreateStoryWithRoot(ctx, "author", models.CreateStoryRequest{Title: "Other", Content: "x"})
	require.NoError(t, err)
	require.NotNil(t, other)

	children, err := env.graph.GetChildren(ctx, root.ID.Hex())
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, through.ID, children[0].ID)
	assert.Equal(t, leave.ID, children[1].ID)

	_, err = env.graph.GetChildren(ctx, "65a1b2c3d4e5f60718293a4b")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.graph.AddChoice(ctx, root.ID.Hex(), "", through.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = env.graph.AddChoice(ctx, root.ID.Hex(), "Jump", otherRoot.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	dup, err := env.graph.AddChoice(ctx, root.ID.Hex(), "Open it", through.ID.Hex())
	require.NoError(t, err)
	scene, err := env.graph.GetScene(ctx, root.ID.Hex())
	require.NoError(t, err)
	require.Len(t, scene.Choices, 3)
	assert.Equal(t, dup.ID, scene.Choices[2].ID)
}

func TestSceneGraph_MarkEnding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story := env.story(t, "Lighthouse")
	root, err := env.graph.CreateScene(ctx, story.ID.Hex(), "", "author", "Waves.", false)
	require.NoError(t, err)

	assert.ErrorIs(t, env.graph.MarkEnding(ctx, root.ID.Hex(), "someone-else"), apperrors.ErrPermission)
	require.NoError(t, env.graph.MarkEnding(ctx, root.ID.Hex(), "author"))
	require.NoError(t, env.graph.MarkEnding(ctx, root.ID.Hex(), "author"))

	scene, err := env.graph.GetScene(ctx, root.ID.Hex())
	require.NoError(t, err)
	assert.True(t, scene.HasEnded)
}

func TestToggleLike_Idempotence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story, root, _, _ := env.theDoor(t)

	toggles := map[string]func() (models.LikeResult, error){
		"story": func() (models.LikeResult, error) { return env.engagement.ToggleLike(ctx, story.ID.Hex(), "reader") },
		"scene": func() (models.LikeResult, error) { return env.graph.ToggleLike(ctx, root.ID.Hex(), "reader") },
	}
	for name, toggle := range toggles {
		t.Run(name, func(t *testing.T) {
			first, err := toggle()
			require.NoError(t, err)
			assert.Equal(t, models.LikeResult{LikesCount: 1, Liked: true}, first)

			second, err := toggle()
			require.NoError(t, err)
			assert.Equal(t, models.LikeResult{LikesCount: 0, Liked: false}, second)

			third, err := toggle()
			require.NoError(t, err)
			assert.Equal(t, first, third)
		})
	}
}

func TestEngagement_RatingUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.story(t, "X").ID.Hex()

	_, err := env.engagement.Rate(ctx, id, "A", 4)
	require.NoError(t, err)
	res, err := env.engagement.Rate(ctx, id, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, models.RatingResult{AvgRating: 2, RatingsCount: 1}, res)

	_, err = env.engagement.Rate(ctx, id, "A", 6)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEngagement_RatingScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.story(t, "X").ID.Hex()

	_, err := env.engagement.Rate(ctx, id, "A", 5)
	require.NoError(t, err)
	res, err := env.engagement.Rate(ctx, id, "B", 3)
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.AvgRating)
	assert.Equal(t, 2, res.RatingsCount)

	res, err = env.engagement.Rate(ctx, id, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.AvgRating)
	assert.Equal(t, 2, res.RatingsCount)

	summary, err := env.engagement.GetEngagementSummary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EngagementSummary{AvgRating: 2, RatingsCount: 2}, summary)
}

func TestEngagement_Comments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story, root, _, _ := env.theDoor(t)
	require.NoError(t, env.store.Users.UpsertUser(ctx, &models.User{ID: "known", Username: "jo"}))

	_, err := env.engagement.AddComment(ctx, story.ID.Hex(), "known", "  ", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	first, err := env.engagement.AddComment(ctx, story.ID.Hex(), "known", "Lovely.", root.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "jo", first.Author.Username)
	require.NotNil(t, first.SceneID)

	second, err := env.engagement.AddComment(ctx, story.ID.Hex(), "stranger", "Hmm.", "")
	require.NoError(t, err)
	assert.Equal(t, models.UnknownAuthor("stranger"), second.Author)

	comments, err := env.engagement.ListComments(ctx, story.ID.Hex(), 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Hmm.", comments[0].Text)
	assert.Equal(t, "jo", comments[1].Author.Username)

	summary, err := env.engagement.GetEngagementSummary(ctx, story.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CommentsCount)
}

func TestRoundTrip_FirstChoiceWalkReachesEnding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story := env.story(t, "Chain")

	parent := ""
	created := 0
	for i, text := range []string{"one", "two", "three", "four"} {
		scene, err := env.graph.CreateScene(ctx, story.ID.Hex(), parent, "author", text, i == 3)
		require.NoError(t, err)
		created++
		if parent != "" {
			_, err = env.graph.AddChoice(ctx, parent, "next", scene.ID.Hex())
			require.NoError(t, err)
		}
		parent = scene.ID.Hex()
	}

	view, err := env.graph.LoadStoryScenes(ctx, story.ID.Hex())
	require.NoError(t, err)
	path, err := traversal.New(view).Walk(traversal.FirstChoice, 0)
	require.NoError(t, err)
	last := path[len(path)-1]
	assert.True(t, last.Terminal)
	assert.LessOrEqual(t, len(path)-1, created)
}

func TestReader_TheDoor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story, root, through, leave := env.theDoor(t)
	storyID := story.ID.Hex()

	start, err := env.reader.Start(ctx, "reader", storyID)
	require.NoError(t, err)
	assert.Equal(t, root.ID.Hex(), start.Scene.ID)
	assert.False(t, start.Terminal)
	require.Len(t, start.Choices, 2)

	open, err := env.reader.Choose(ctx, "reader", storyID, root.ID.Hex(), choiceID(t, start, "Open it"))
	require.NoError(t, err)
	assert.Equal(t, through.ID.Hex(), open.Scene.ID)
	assert.True(t, open.Terminal)
	assert.Empty(t, open.Choices)

	walk, err := env.reader.Replay(ctx, "reader", storyID, []string{choiceID(t, start, "Walk away")})
	require.NoError(t, err)
	assert.Equal(t, leave.ID.Hex(), walk.Scene.ID)
	assert.True(t, walk.Terminal)

	_, err = env.reader.Choose(ctx, "reader", storyID, through.ID.Hex(), choiceID(t, start, "Open it"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = env.graph.CreateScene(ctx, storyID, through.ID.Hex(), "author", "Beyond.", false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	progress, err := env.reader.ListProgress(ctx, "reader", models.ProgressCompleted, 0)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, leave.ID.Hex(), progress[0].LastSceneID)
}

func TestReader_ReadStoryCountsViews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	story, root, _, _ := env.theDoor(t)

	view, err := env.reader.ReadStory(ctx, story.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "The Door", view.Title)
	assert.Equal(t, root.ID.Hex(), view.RootSceneID)
	assert.Len(t, view.Scenes, 3)

	summary, err := env.engagement.GetEngagementSummary(ctx, story.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Views)
}

func TestReader_StartWithoutEntryScene(t *testing.T) {
	env := newTestEnv(t)
	story := env.story(t, "Empty")

	_, err := env.reader.Start(context.Background(), "reader", story.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}
