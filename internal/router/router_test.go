package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woventales/backend/internal/metrics"
	"github.com/woventales/backend/internal/middleware"
	"github.com/woventales/backend/validators"
	"go.uber.org/zap"
)

// headerAuth trusts the X-User-ID header; requests without it are rejected
func headerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get("X-User-ID")
		if id == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
		}
		c.Set(middleware.UserIDKey, id)
		return next(c)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type client struct {
	t *testing.T
	e *echo.Echo
}

func newClient(t *testing.T) *client {
	t.Helper()
	log := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	e := echo.New()
	e.Validator = validators.NewValidator()
	SetupMiddleware(e, log, m, 0)
	SetupRoutes(e, NewMemoryRepositories(), headerAuth, m, log)
	return &client{t: t, e: e}
}

func (c *client) do(method, path, user, body string, out interface{}) (int, envelope) {
	c.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil && env.Success {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	return rec.Code, env
}

type sceneDoc struct {
	ID string `json:"id"`
}

type stepDoc struct {
	Scene struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"scene"`
	Choices []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"choices"`
	Terminal bool `json:"terminal"`
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	c := newClient(t)
	code, env := c.do(http.MethodGet, "/api/v1/stories", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestAPI_TheDoor(t *testing.T) {
	c := newClient(t)

	var created struct {
		Story struct {
			ID           string `json:"id"`
			EntrySceneID string `json:"entry_scene_id"`
		} `json:"story"`
		Scene sceneDoc `json:"scene"`
	}
	code, _ := c.do(http.MethodPost, "/api/v1/stories", "author",
		`{"title":"The Door","content":"A door creaks open."}`, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, created.Scene.ID, created.Story.EntrySceneID)
	storyID, rootID := created.Story.ID, created.Scene.ID

	var branch struct {
		Scene sceneDoc `json:"scene"`
	}
	code, _ = c.do(http.MethodPost, "/api/v1/scenes/"+rootID+"/branches", "author",
		`{"choiceText":"Open it","content":"You step through.","isEnding":true}`, &branch)
	require.Equal(t, http.StatusCreated, code)
	throughID := branch.Scene.ID
	code, _ = c.do(http.MethodPost, "/api/v1/scenes/"+rootID+"/branches", "author",
		`{"choiceText":"Walk away","content":"You leave.","isEnding":true}`, &branch)
	require.Equal(t, http.StatusCreated, code)

	var start stepDoc
	code, _ = c.do(http.MethodPost, "/api/v1/stories/"+storyID+"/read/start", "reader", "", &start)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, start.Choices, 2)
	assert.Equal(t, "Open it", start.Choices[0].Text)

	var next stepDoc
	code, _ = c.do(http.MethodPost, "/api/v1/stories/"+storyID+"/read/choose", "reader",
		`{"sceneId":"`+rootID+`","choiceId":"`+start.Choices[0].ID+`"}`, &next)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, throughID, next.Scene.ID)
	assert.True(t, next.Terminal)

	code, env := c.do(http.MethodPost, "/api/v1/scenes", "author",
		`{"storyId":"`+storyID+`","parentId":"`+throughID+`","content":"Beyond."}`, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_state", env.Error.Code)

	var payload struct {
		Title       string     `json:"title"`
		RootSceneID string     `json:"rootSceneId"`
		Scenes      []sceneDoc `json:"scenes"`
	}
	code, _ = c.do(http.MethodGet, "/api/v1/stories/"+storyID+"/scenes", "reader", "", &payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "The Door", payload.Title)
	assert.Equal(t, rootID, payload.RootSceneID)
	assert.Len(t, payload.Scenes, 3)

	var finished struct {
		Stories []struct {
			ID string `json:"id"`
		} `json:"stories"`
	}
	code, _ = c.do(http.MethodGet, "/api/v1/stories/finished", "reader", "", &finished)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, finished.Stories, 1)
	assert.Equal(t, storyID, finished.Stories[0].ID)

	var progress struct {
		Progress []struct {
			Status string `json:"status"`
		} `json:"progress"`
	}
	code, _ = c.do(http.MethodGet, "/api/v1/me/progress", "reader", "", &progress)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, progress.Progress, 1)
	assert.Equal(t, "completed", progress.Progress[0].Status)
}

func TestAPI_Engagement(t *testing.T) {
	c := newClient(t)

	var created struct {
		Story struct {
			ID string `json:"id"`
		} `json:"story"`
	}
	code, _ := c.do(http.MethodPost, "/api/v1/stories", "author", `{"title":"X","content":"Start."}`, &created)
	require.Equal(t, http.StatusCreated, code)
	base := "/api/v1/stories/" + created.Story.ID

	var like struct {
		LikesCount int  `json:"likesCount"`
		Liked      bool `json:"liked"`
	}
	code, _ = c.do(http.MethodPost, base+"/like", "A", "", &like)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, like.Liked)
	assert.Equal(t, 1, like.LikesCount)

	var rating struct {
		AvgRating    float64 `json:"avgRating"`
		RatingsCount int     `json:"ratingsCount"`
	}
	c.do(http.MethodPost, base+"/rate", "A", `{"value":5}`, &rating)
	c.do(http.MethodPost, base+"/rate", "B", `{"value":3}`, &rating)
	assert.Equal(t, 4.0, rating.AvgRating)
	code, _ = c.do(http.MethodPost, base+"/rate", "A", `{"value":1}`, &rating)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, rating.AvgRating)
	assert.Equal(t, 2, rating.RatingsCount)

	code, env := c.do(http.MethodPost, base+"/rate", "A", `{"value":7}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Code)

	code, _ = c.do(http.MethodPost, base+"/comments", "B", `{"text":"Great start."}`, nil)
	require.Equal(t, http.StatusCreated, code)

	var summary struct {
		LikesCount    int     `json:"likesCount"`
		AvgRating     float64 `json:"avgRating"`
		RatingsCount  int     `json:"ratingsCount"`
		CommentsCount int     `json:"commentsCount"`
		Views         int     `json:"views"`
	}
	code, _ = c.do(http.MethodGet, base+"/engagement", "A", "", &summary)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, summary.LikesCount)
	assert.Equal(t, 2, summary.RatingsCount)
	assert.Equal(t, 1, summary.CommentsCount)
	assert.Equal(t, 0, summary.Views)
}

func TestAPI_Errors(t *testing.T) {
	c := newClient(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed story id", http.MethodGet, "/api/v1/stories/zzz", "", http.StatusBadRequest, "validation_error"},
		{"missing story", http.MethodGet, "/api/v1/stories/65a1b2c3d4e5f60718293a4b", "", http.StatusNotFound, "not_found"},
		{"unknown sort", http.MethodGet, "/api/v1/stories?sort=random", "", http.StatusBadRequest, "validation_error"},
		{"missing title", http.MethodPost, "/api/v1/stories", `{"content":"x"}`, http.StatusBadRequest, "validation_error"},
		{"scenes without story", http.MethodGet, "/api/v1/scenes", "", http.StatusBadRequest, "validation_error"},
		{"bad json", http.MethodPost, "/api/v1/scenes", `{"storyId":`, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := c.do(tt.method, tt.path, "u1", tt.body, nil)
			assert.Equal(t, tt.status, code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}
