// Package memstore provides in-memory implementations of the repository
// interfaces. It backs the memory store backend and the service tests.
package memstore

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/woventales/backend/internal/apperrors"
	"github.com/woventales/backend/internal/models"
	"github.com/woventales/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store bundles every in-memory repository behind one mutex, so operations
// that are a single atomic statement in MongoDB or PostgreSQL stay atomic here.
type Store struct {
	mu       sync.RWMutex
	stories  map[primitive.ObjectID]*models.Story
	scenes   map[primitive.ObjectID]*models.Scene
	order    []primitive.ObjectID
	users    map[string]*models.User
	comments []models.Comment
	progress map[string]*models.StoryProgress
	nextID   uint
	clock    func() time.Time

	Stories  *StoryStore
	Scenes   *SceneStore
	Users    *UserStore
	Comments *CommentStore
	Progress *ProgressStore
}

// New creates an empty store
func New() *Store {
	s := &Store{
		stories:  make(map[primitive.ObjectID]*models.Story),
		scenes:   make(map[primitive.ObjectID]*models.Scene),
		users:    make(map[string]*models.User),
		progress: make(map[string]*models.StoryProgress),
	}
	base := time.Now()
	var tick int64
	// Strictly increasing timestamps keep creation order observable.
	s.clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Microsecond)
	}
	s.Stories = &StoryStore{s}
	s.Scenes = &SceneStore{s}
	s.Users = &UserStore{s}
	s.Comments = &CommentStore{s}
	s.Progress = &ProgressStore{s}
	return s
}

func cloneStory(st *models.Story) *models.Story {
	c := *st
	c.Likes = slices.Clone(st.Likes)
	c.Ratings = slices.Clone(st.Ratings)
	if st.EntrySceneID != nil {
		id := *st.EntrySceneID
		c.EntrySceneID = &id
	}
	return &c
}

func cloneScene(sc *models.Scene) *models.Scene {
	c := *sc
	c.Likes = slices.Clone(sc.Likes)
	c.Choices = slices.Clone(sc.Choices)
	if sc.ParentID != nil {
		id := *sc.ParentID
		c.ParentID = &id
	}
	return &c
}

func toggle(set []string, userID string) ([]string, models.LikeResult) {
	if i := slices.Index(set, userID); i >= 0 {
		set = slices.Delete(set, i, i+1)
		return set, models.LikeResult{LikesCount: len(set), Liked: false}
	}
	set = append(set, userID)
	return set, models.LikeResult{LikesCount: len(set), Liked: true}
}

// StoryStore implements repositories.StoryRepository
type StoryStore struct{ s *Store }

var _ repositories.StoryRepository = (*StoryStore)(nil)

func (r *StoryStore) story(id string) (*models.Story, error) {
	objID, err := repositories.ParseObjectID("story", id)
	if err != nil {
		return nil, err
	}
	st, ok := r.s.stories[objID]
	if !ok {
		return nil, apperrors.NotFound("story not found")
	}
	return st, nil
}

func (r *StoryStore) CreateStory(_ context.Context, story *models.Story) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock()
	story.ID = primitive.NewObjectID()
	story.EntrySceneID = nil
	story.CreatedAt = now
	story.UpdatedAt = now
	if story.Likes == nil {
		story.Likes = []string{}
	}
	if story.Ratings == nil {
		story.Ratings = []models.Rating{}
	}
	r.s.stories[story.ID] = cloneStory(story)
	return nil
}

func (r *StoryStore) GetStoryByID(_ context.Context, id string) (*models.Story, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, err := r.story(id)
	if err != nil {
		return nil, err
	}
	return cloneStory(st), nil
}

func matches(st *models.Story, filter models.StoryFilter) bool {
	if filter.Status != "" && st.Status != filter.Status {
		return false
	}
	if filter.Genre != "" && st.Genre != filter.Genre {
		return false
	}
	if filter.AuthorID != "" && st.AuthorID != filter.AuthorID {
		return false
	}
	id := st.ID.Hex()
	if filter.IDs != nil && !slices.Contains(filter.IDs, id) {
		return false
	}
	return !slices.Contains(filter.ExcludeIDs, id)
}

func less(a, b models.StorySummary, key models.StorySort) bool {
	switch key {
	case models.SortPopular:
		if a.LikesCount != b.LikesCount {
			return a.LikesCount > b.LikesCount
		}
		if a.Views != b.Views {
			return a.Views > b.Views
		}
	case models.SortRating:
		if a.AvgRating != b.AvgRating {
			return a.AvgRating > b.AvgRating
		}
		if a.RatingsCount != b.RatingsCount {
			return a.RatingsCount > b.RatingsCount
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// ListStories takes a snapshot on every range, mirroring a re-run query
func (r *StoryStore) ListStories(_ context.Context, filter models.StoryFilter, key models.StorySort, limit int) iter.Seq2[models.StorySummary, error] {
	return func(yield func(models.StorySummary, error) bool) {
		for _, id := range filter.IDs {
			if _, err := repositories.ParseObjectID("story", id); err != nil {
				yield(models.StorySummary{}, err)
				return
			}
		}

		r.s.mu.RLock()
		summaries := make([]models.StorySummary, 0, len(r.s.stories))
		for _, st := range r.s.stories {
			if matches(st, filter) {
				summaries = append(summaries, st.Summary())
			}
		}
		r.s.mu.RUnlock()

		sort.Slice(summaries, func(i, j int) bool { return less(summaries[i], summaries[j], key) })
		if n := models.NormalizeLimit(limit); len(summaries) > n {
			summaries = summaries[:n]
		}
		for _, summary := range summaries {
			if !yield(summary, nil) {
				return
			}
		}
	}
}

func (r *StoryStore) SetEntrySceneIfUnset(_ context.Context, storyID, sceneID string) (bool, error) {
	sceneObjID, err := repositories.ParseObjectID("scene", sceneID)
	if err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.story(storyID)
	if err != nil {
		// The Mongo conditional update matches nothing for a missing story.
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return false, nil
		}
		return false, err
	}
	if st.EntrySceneID != nil {
		return false, nil
	}
	st.EntrySceneID = &sceneObjID
	st.UpdatedAt = r.s.clock()
	return true, nil
}

func (r *StoryStore) DeleteStory(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.story(id)
	if err != nil {
		return err
	}
	delete(r.s.stories, st.ID)
	return nil
}

func (r *StoryStore) ToggleLike(_ context.Context, storyID, userID string) (models.LikeResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.story(storyID)
	if err != nil {
		return models.LikeResult{}, err
	}
	var res models.LikeResult
	st.Likes, res = toggle(st.Likes, userID)
	st.UpdatedAt = r.s.clock()
	return res, nil
}

func (r *StoryStore) UpsertRating(_ context.Context, storyID, userID string, value int) ([]models.Rating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.story(storyID)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(st.Ratings, func(rt models.Rating) bool { return rt.UserID == userID })
	if i >= 0 {
		st.Ratings[i].Value = value
	} else {
		st.Ratings = append(st.Ratings, models.Rating{UserID: userID, Value: value})
	}
	st.UpdatedAt = r.s.clock()
	return slices.Clone(st.Ratings), nil
}

func (r *StoryStore) IncrementCommentsCount(_ context.Context, storyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.story(storyID)
	if err != nil {
		return err
	}
	st.CommentsCount++
	return nil
}

func (r *StoryStore) IncrementViews(_ context.Context, storyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.story(storyID)
	if err != nil {
		return err
	}
	st.Views++
	return nil
}

// SceneStore implements repositories.SceneRepository
type SceneStore struct{ s *Store }

var _ repositories.SceneRepository = (*SceneStore)(nil)

func (r *SceneStore) scene(id string) (*models.Scene, error) {
	objID, err := repositories.ParseObjectID("scene", id)
	if err != nil {
		return nil, err
	}
	sc, ok := r.s.scenes[objID]
	if !ok {
		return nil, apperrors.NotFound("scene not found")
	}
	return sc, nil
}

func (r *SceneStore) CreateScene(_ context.Context, scene *models.Scene) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock()
	scene.ID = primitive.NewObjectID()
	scene.CreatedAt = now
	scene.UpdatedAt = now
	if scene.Choices == nil {
		scene.Choices = []models.Choice{}
	}
	if scene.Likes == nil {
		scene.Likes = []string{}
	}
	r.s.scenes[scene.ID] = cloneScene(scene)
	r.s.order = append(r.s.order, scene.ID)
	return nil
}

func (r *SceneStore) GetSceneByID(_ context.Context, id string) (*models.Scene, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sc, err := r.scene(id)
	if err != nil {
		return nil, err
	}
	return cloneScene(sc), nil
}

// collect walks scenes in insertion order, which is also creation order
func (r *SceneStore) collect(keep func(*models.Scene) bool) []models.Scene {
	out := []models.Scene{}
	for _, id := range r.s.order {
		if sc, ok := r.s.scenes[id]; ok && keep(sc) {
			out = append(out, *cloneScene(sc))
		}
	}
	return out
}

func (r *SceneStore) GetChildren(_ context.Context, parentID string) ([]models.Scene, error) {
	objID, err := repositories.ParseObjectID("scene", parentID)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.collect(func(sc *models.Scene) bool {
		return sc.ParentID != nil && *sc.ParentID == objID
	}), nil
}

func (r *SceneStore) GetScenesByStory(_ context.Context, storyID string) ([]models.Scene, error) {
	objID, err := repositories.ParseObjectID("story", storyID)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.collect(func(sc *models.Scene) bool { return sc.StoryID == objID }), nil
}

func (r *SceneStore) AppendChoice(_ context.Context, sceneID string, choice models.Choice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sc, err := r.scene(sceneID)
	if err != nil {
		return err
	}
	sc.Choices = append(sc.Choices, choice)
	sc.UpdatedAt = r.s.clock()
	return nil
}

func (r *SceneStore) MarkEnded(_ context.Context, sceneID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sc, err := r.scene(sceneID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return false, nil
		}
		return false, err
	}
	if sc.HasEnded {
		return false, nil
	}
	sc.HasEnded = true
	sc.UpdatedAt = r.s.clock()
	return true, nil
}

func (r *SceneStore) SetParent(_ context.Context, sceneID, parentID string) error {
	parentObjID, err := repositories.ParseObjectID("scene", parentID)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sc, err := r.scene(sceneID)
	if err != nil {
		return err
	}
	sc.ParentID = &parentObjID
	sc.UpdatedAt = r.s.clock()
	return nil
}

func (r *SceneStore) DeleteScene(_ context.Context, id string) error {
	objID, err := repositories.ParseObjectID("scene", id)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.scenes, objID)
	r.s.order = slices.DeleteFunc(r.s.order, func(o primitive.ObjectID) bool { return o == objID })
	return nil
}

func (r *SceneStore) ToggleLike(_ context.Context, sceneID, userID string) (models.LikeResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sc, err := r.scene(sceneID)
	if err != nil {
		return models.LikeResult{}, err
	}
	var res models.LikeResult
	sc.Likes, res = toggle(sc.Likes, userID)
	sc.UpdatedAt = r.s.clock()
	return res, nil
}

func (r *SceneStore) distinctStories(keep func(*models.Scene) bool) []string {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := []string{}
	for _, id := range r.s.order {
		sc := r.s.scenes[id]
		if sc == nil || !keep(sc) {
			continue
		}
		if hex := sc.StoryID.Hex(); !slices.Contains(ids, hex) {
			ids = append(ids, hex)
		}
	}
	return ids
}

func (r *SceneStore) StoryIDsWithEndings(_ context.Context) ([]string, error) {
	return r.distinctStories(func(sc *models.Scene) bool { return sc.HasEnded }), nil
}

func (r *SceneStore) StoryIDsByAuthor(_ context.Context, authorID string) ([]string, error) {
	return r.distinctStories(func(sc *models.Scene) bool { return sc.AuthorID == authorID }), nil
}

// UserStore implements repositories.UserRepository
type UserStore struct{ s *Store }

var _ repositories.UserRepository = (*UserStore)(nil)

func (r *UserStore) UpsertUser(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock()
	if existing, ok := r.s.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r *UserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	c := *u
	return &c, nil
}

func (r *UserStore) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := []models.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

// CommentStore implements repositories.CommentRepository
type CommentStore struct{ s *Store }

var _ repositories.CommentRepository = (*CommentStore)(nil)

func (r *CommentStore) CreateComment(_ context.Context, comment *models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextID++
	comment.ID = r.s.nextID
	comment.CreatedAt = r.s.clock()
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r *CommentStore) GetCommentsByStoryID(_ context.Context, storyID string, limit int) ([]models.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Comment{}
	for i := len(r.s.comments) - 1; i >= 0 && len(out) < models.NormalizeLimit(limit); i-- {
		if r.s.comments[i].StoryID == storyID {
			out = append(out, r.s.comments[i])
		}
	}
	return out, nil
}

func (r *CommentStore) DeleteComment(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.comments = slices.DeleteFunc(r.s.comments, func(c models.Comment) bool { return c.ID == id })
	return nil
}

// ProgressStore implements repositories.ProgressRepository
type ProgressStore struct{ s *Store }

var _ repositories.ProgressRepository = (*ProgressStore)(nil)

func (r *ProgressStore) RecordStep(_ context.Context, userID, storyID, sceneID string, completed bool, steps int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock()
	key := userID + "/" + storyID
	p, ok := r.s.progress[key]
	if !ok {
		r.s.nextID++
		p = &models.StoryProgress{
			ID:        r.s.nextID,
			UserID:    userID,
			StoryID:   storyID,
			Status:    models.ProgressInProgress,
			CreatedAt: now,
		}
		r.s.progress[key] = p
	}
	p.LastSceneID = sceneID
	p.Steps += steps
	p.UpdatedAt = now
	if completed && p.Status != models.ProgressCompleted {
		p.Status = models.ProgressCompleted
		p.CompletedAt = &now
	}
	return nil
}

func (r *ProgressStore) ListProgress(_ context.Context, userID, status string, limit int) ([]models.StoryProgress, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := []models.StoryProgress{}
	for _, p := range r.s.progress {
		if p.UserID == userID && (status == "" || p.Status == status) {
			rows = append(rows, *p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UpdatedAt.After(rows[j].UpdatedAt) })
	if n := models.NormalizeLimit(limit); len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}
