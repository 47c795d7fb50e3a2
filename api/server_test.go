package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/models"
	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/profiler"
	"github.com/nvr-ai/ingredient-vision/recipes"
	"github.com/nvr-ai/ingredient-vision/selection"
	"github.com/nvr-ai/ingredient-vision/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var produce = models.MustFromNames("test", "apple", "banana", "carrot", "broccoli")

// fakeRecipes answers from fixed data and records the titles it was asked about.
type fakeRecipes struct {
	catalogue map[string]recipes.Ingredient
	asked     []string
	err       error
}

func (f *fakeRecipes) Ingredients(ctx context.Context, limit int) ([]recipes.Ingredient, error) {
	return []recipes.Ingredient{{ID: 1, Title: "apple"}}, f.err
}

func (f *fakeRecipes) SearchIngredient(ctx context.Context, name string) ([]recipes.Ingredient, error) {
	if ing, ok := f.catalogue[name]; ok {
		return []recipes.Ingredient{ing}, f.err
	}
	return []recipes.Ingredient{}, f.err
}

func (f *fakeRecipes) Resolve(ctx context.Context, labels []string) ([]recipes.Ingredient, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	var found []recipes.Ingredient
	var missing []string
	for _, label := range labels {
		if ing, ok := f.catalogue[label]; ok {
			found = append(found, ing)
		} else {
			missing = append(missing, label)
		}
	}
	return found, missing, nil
}

func (f *fakeRecipes) RecipesByIngredients(ctx context.Context, ingredients []string, page int) ([]recipes.Summary, error) {
	f.asked = append(f.asked, ingredients...)
	return []recipes.Summary{{ID: 10, Title: "fruit salad"}}, f.err
}

func (f *fakeRecipes) SearchRecipes(ctx context.Context, q string) ([]recipes.Summary, error) {
	return []recipes.Summary{{ID: 11, Title: q + " pie"}}, f.err
}

func (f *fakeRecipes) Recipes(ctx context.Context, page int) ([]recipes.Summary, error) {
	return []recipes.Summary{{ID: page, Title: "soup"}}, f.err
}

func (f *fakeRecipes) Recipe(ctx context.Context, id int) (*recipes.Recipe, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &recipes.Recipe{Summary: recipes.Summary{ID: id, Title: "soup"}}, nil
}

type fixture struct {
	rt       *test.MockRuntime
	recipes  *fakeRecipes
	sessions *Sessions
	handler  http.Handler
}

func newFixture(t *testing.T, rt *test.MockRuntime, opts Options) *fixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	tracker := profiler.NewTracker(profiler.Options{})

	p, err := pipeline.NewBuilder().
		WithModel(pipeline.NewModelFromRuntime(rt, pipeline.WithModelLogger(logger))).
		WithLabels(produce).
		WithLogger(logger).
		WithTracker(tracker).
		Build()
	require.NoError(t, err)

	f := &fixture{
		rt: rt,
		recipes: &fakeRecipes{catalogue: map[string]recipes.Ingredient{
			"apple":  {ID: 1, Title: "apple"},
			"banana": {ID: 2, Title: "banana"},
		}},
		sessions: NewSessions(selection.DefaultLimit, time.Hour),
	}
	f.handler = NewServer(p, f.recipes, f.sessions, tracker, logger, opts).Router()
	return f
}

func defaultRuntime() *test.MockRuntime {
	return test.NewMockRuntime(image.Pt(640, 640), test.NewOutput([]float32{0.9, 0.8, 0.1}, []int{0, 1, 2}))
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, path string, photo []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "counter.jpg")
	require.NoError(t, err)
	_, err = part.Write(photo)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) session(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.ID
}

type selectionBody struct {
	Selection selection.Snapshot `json:"selection"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func photoJPEG() []byte {
	return test.NewMockPhotoGenerator(600, 800).JPEG(image.Rect(200, 200, 400, 400))
}

func TestScanAndSelect(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})
	id := f.session(t)

	w := f.upload(t, "/v1/sessions/"+id+"/scan", photoJPEG())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	scan := decode[struct {
		Status    string             `json:"status"`
		Labels    []string           `json:"labels"`
		Selection selection.Snapshot `json:"selection"`
	}](t, w)
	assert.Equal(t, "detected", scan.Status)
	assert.Equal(t, []string{"apple", "banana"}, scan.Labels)
	assert.Equal(t, []string{"apple", "banana"}, scan.Selection.Selected)

	w = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/toggle", gin.H{"label": "banana"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"apple"}, decode[selectionBody](t, w).Selection.Selected)

	w = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/toggle", gin.H{"label": "carrot"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_detected", decode[errorResponse](t, w).Kind)

	w = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/commit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"apple"}, decode[selectionBody](t, w).Selection.Basket)

	w = f.do(t, http.MethodGet, "/v1/sessions/"+id+"/recipes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"apple"}, f.recipes.asked)
}

func TestScanNothingDetected(t *testing.T) {
	rt := test.NewMockRuntime(image.Pt(640, 640), test.NewOutput([]float32{0.1}, []int{0}))
	f := newFixture(t, rt, Options{})
	id := f.session(t)

	w := f.upload(t, "/v1/sessions/"+id+"/scan", photoJPEG())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pipeline.Status("nothing_detected"), decode[pipeline.Result](t, w).Status)
}

func TestScanFailures(t *testing.T) {
	tests := []struct {
		name   string
		rt     func() *test.MockRuntime
		photo  []byte
		status int
		kind   string
	}{
		{
			name:   "invalid image",
			rt:     defaultRuntime,
			photo:  []byte("not a photo"),
			status: http.StatusUnprocessableEntity,
			kind:   string(pipeline.KindInvalidImage),
		},
		{
			name: "detector failure",
			rt: func() *test.MockRuntime {
				rt := defaultRuntime()
				rt.Err = errors.Wrap(inference.ErrInference, "boom")
				return rt
			},
			photo:  photoJPEG(),
			status: http.StatusInternalServerError,
			kind:   string(pipeline.KindInference),
		},
		{
			name: "unknown class",
			rt: func() *test.MockRuntime {
				return test.NewMockRuntime(image.Pt(640, 640), test.NewOutput([]float32{0.9}, []int{42}))
			},
			photo:  photoJPEG(),
			status: http.StatusInternalServerError,
			kind:   string(pipeline.KindUnknownClass),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.rt(), Options{})
			id := f.session(t)

			w := f.upload(t, "/v1/sessions/"+id+"/scan", tt.photo)
			assert.Equal(t, tt.status, w.Code)
			body := decode[errorResponse](t, w)
			assert.Equal(t, tt.kind, body.Kind)
			assert.True(t, body.Retry)

			// A failed scan leaves the selection untouched.
			sess := decode[selectionBody](t, f.do(t, http.MethodGet, "/v1/sessions/"+id, nil))
			assert.Empty(t, sess.Selection.Detected)
		})
	}
}

func TestScanTimeout(t *testing.T) {
	rt := defaultRuntime()
	rt.Block = make(chan struct{})
	f := newFixture(t, rt, Options{ScanTimeout: 20 * time.Millisecond})
	id := f.session(t)

	w := f.upload(t, "/v1/sessions/"+id+"/scan", photoJPEG())
	assert.Equal(t, StatusClientClosedRequest, w.Code)
	assert.Equal(t, string(pipeline.KindCancelled), decode[errorResponse](t, w).Kind)
}

func TestScanCancelledByClient(t *testing.T) {
	rt := defaultRuntime()
	rt.Block = make(chan struct{})
	rt.Started = make(chan struct{}, 1)
	f := newFixture(t, rt, Options{})
	id := f.session(t)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- f.upload(t, "/v1/sessions/"+id+"/scan", photoJPEG())
	}()

	<-rt.Started
	w := f.do(t, http.MethodDelete, "/v1/sessions/"+id+"/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[gin.H](t, w)["cancelled"])

	select {
	case w := <-done:
		assert.Equal(t, StatusClientClosedRequest, w.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("scan was not cancelled")
	}
}

func TestScanRequiresPhoto(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})
	id := f.session(t)

	w := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/scan", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, f.rt.Calls())
}

func TestBasketLimit(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})
	id := f.session(t)

	for _, label := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		w := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/basket", gin.H{"label": label})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/basket", gin.H{"label": "k"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "selection_limit_exceeded", decode[errorResponse](t, w).Kind)

	w = f.do(t, http.MethodDelete, "/v1/sessions/"+id+"/basket/a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[selectionBody](t, w).Selection.Basket, 9)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})
	id := f.session(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing label", http.MethodPost, "/v1/sessions/" + id + "/toggle", gin.H{}, http.StatusBadRequest},
		{"malformed session", http.MethodGet, "/v1/sessions/nope", nil, http.StatusNotFound},
		{"unknown session", http.MethodGet, "/v1/sessions/" + uuid.NewString(), nil, http.StatusNotFound},
		{"non-numeric recipe", http.MethodGet, "/v1/recipes/soup", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, f.do(t, tt.method, tt.path, tt.body).Code)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})
	id := f.session(t)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/v1/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/sessions/"+id, nil).Code)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestRecipeRoutes(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})

	w := f.do(t, http.MethodGet, "/v1/recipes?page=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[[]recipes.Summary](t, w)[0].ID)

	w = f.do(t, http.MethodGet, "/v1/recipes?q=apple", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "apple pie", decode[[]recipes.Summary](t, w)[0].Title)

	w = f.do(t, http.MethodGet, "/v1/recipes/12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12, decode[recipes.Recipe](t, w).ID)

	w = f.do(t, http.MethodGet, "/v1/ingredients?q=banana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []recipes.Ingredient{{ID: 2, Title: "banana"}}, decode[[]recipes.Ingredient](t, w))

	f.recipes.err = errors.Wrap(recipes.ErrUnavailable, "connection refused")
	w = f.do(t, http.MethodGet, "/v1/recipes", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.False(t, decode[errorResponse](t, w).Retry)
}

func TestModelRoutes(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})

	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/v1/model", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[pipeline.ModelStatus](t, w).Loaded)

	w = f.do(t, http.MethodGet, "/v1/labels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Classes []models.OutputClass `json:"classes"`
	}](t, w).Classes, 4)

	w = f.do(t, http.MethodGet, "/v1/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, defaultRuntime(), Options{})

	w := f.do(t, http.MethodOptions, "/v1/sessions", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
