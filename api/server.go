// Package api - HTTP service for scanning photos, editing the ingredient selection and finding recipes.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/profiler"
	"github.com/nvr-ai/ingredient-vision/recipes"
	"github.com/nvr-ai/ingredient-vision/selection"
)

// RecipeService is the part of the recipe service the API uses.
type RecipeService interface {
	Ingredients(ctx context.Context, limit int) ([]recipes.Ingredient, error)
	SearchIngredient(ctx context.Context, name string) ([]recipes.Ingredient, error)
	Resolve(ctx context.Context, labels []string) ([]recipes.Ingredient, []string, error)
	RecipesByIngredients(ctx context.Context, ingredients []string, page int) ([]recipes.Summary, error)
	SearchRecipes(ctx context.Context, q string) ([]recipes.Summary, error)
	Recipes(ctx context.Context, page int) ([]recipes.Summary, error)
	Recipe(ctx context.Context, id int) (*recipes.Recipe, error)
}

var _ RecipeService = (*recipes.Client)(nil)

// Options configures a Server.
type Options struct {
	// MaxUploadBytes bounds a photo upload.
	MaxUploadBytes int64
	// ScanTimeout bounds one scan. Zero waits for the client.
	ScanTimeout time.Duration
}

// Server wires the pipeline, the selection sessions and the recipe service to HTTP routes.
type Server struct {
	pipeline *pipeline.Pipeline
	recipes  RecipeService
	sessions *Sessions
	tracker  *profiler.Tracker
	logger   logrus.FieldLogger
	opts     Options
}

// NewServer creates a server.
//
// Arguments:
//   - p: The detection pipeline.
//   - recipeService: The recipe service client.
//   - sessions: The selection session store.
//   - tracker: Stage timings exposed on /v1/stats.
//   - logger: The request and scan logger.
//   - opts: Upload and timeout limits.
//
// Returns:
//   - *Server: The server.
func NewServer(
	p *pipeline.Pipeline,
	recipeService RecipeService,
	sessions *Sessions,
	tracker *profiler.Tracker,
	logger logrus.FieldLogger,
	opts Options,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 << 20
	}
	return &Server{
		pipeline: p,
		recipes:  recipeService,
		sessions: sessions,
		tracker:  tracker,
		logger:   logger,
		opts:     opts,
	}
}

// Router returns the gin engine serving every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(cors)
	r.MaxMultipartMemory = s.opts.MaxUploadBytes

	r.GET("/healthz", s.health)

	v1 := r.Group("/v1")
	{
		v1.GET("/stats", s.stats)
		v1.GET("/model", s.modelStatus)
		v1.POST("/model/reload", s.reloadModel)
		v1.GET("/labels", s.labels)

		v1.POST("/sessions", s.createSession)
		sess := v1.Group("/sessions/:id", s.session)
		{
			sess.GET("", s.getSession)
			sess.DELETE("", s.deleteSession)
			sess.POST("/scan", s.scan)
			sess.DELETE("/scan", s.cancelScan)
			sess.POST("/toggle", s.toggle)
			sess.POST("/commit", s.commit)
			sess.POST("/basket", s.addToBasket)
			sess.DELETE("/basket/:label", s.removeFromBasket)
			sess.GET("/recipes", s.sessionRecipes)
		}

		v1.GET("/ingredients", s.ingredients)
		v1.GET("/recipes", s.listRecipes)
		v1.GET("/recipes/:recipe", s.recipe)
	}
	return r
}

// requestLogger logs every request through logger.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithError(c.Errors.Last())
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

// cors lets the mobile app and browser clients call the service from any origin.
func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

const sessionKey = "session"

// session loads the :id session into the context.
func (s *Server) session(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, errors.Wrap(errSessionNotFound, "malformed session id"))
		return
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		abort(c, errors.Wrapf(errSessionNotFound, "%s", id))
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func currentSession(c *gin.Context) *Session {
	return c.MustGet(sessionKey).(*Session)
}

func (s *Server) health(c *gin.Context) {
	status := s.pipeline.Model().Status()
	code := http.StatusOK
	if !status.Loaded {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"model": status})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pipeline": s.tracker.Snapshot(),
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) modelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Model().Status())
}

func (s *Server) reloadModel(c *gin.Context) {
	if err := s.pipeline.Model().Retry(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s.pipeline.Model().Status())
}

func (s *Server) labels(c *gin.Context) {
	table := s.pipeline.Labels()
	c.JSON(http.StatusOK, gin.H{
		"version": table.Version(),
		"classes": table.Classes(),
	})
}

func (s *Server) createSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"id":        sess.ID,
		"selection": sess.State.Snapshot(),
	})
}

func (s *Server) getSession(c *gin.Context) {
	sess := currentSession(c)
	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "selection": sess.State.Snapshot()})
}

func (s *Server) deleteSession(c *gin.Context) {
	s.sessions.Delete(currentSession(c).ID)
	c.Status(http.StatusNoContent)
}

// scanResponse is the body of a successful scan.
type scanResponse struct {
	*pipeline.Result
	Selection selection.Snapshot `json:"selection"`
}

// scan runs an uploaded photo through the pipeline and installs its labels in the session.
func (s *Server) scan(c *gin.Context) {
	sess := currentSession(c)

	data, err := readPhoto(c, s.opts.MaxUploadBytes)
	if err != nil {
		badRequest(c, err)
		return
	}

	ticket, ctx, done := sess.beginScan(c.Request.Context(), s.opts.ScanTimeout)
	defer done()

	res, err := s.pipeline.RunBytes(ctx, data)
	if err != nil {
		abort(c, err)
		return
	}
	if err := sess.State.Commit(ticket, res.Labels); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, scanResponse{Result: res, Selection: sess.State.Snapshot()})
}

func readPhoto(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	header, err := c.FormFile("photo")
	if err != nil {
		return nil, errors.Wrap(err, "photo upload is required")
	}
	f, err := header.Open()
	if err != nil {
		return nil, errors.Wrap(err, "error opening upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "error reading upload")
	}
	return data, nil
}

func (s *Server) cancelScan(c *gin.Context) {
	cancelled := currentSession(c).cancelScan()
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

type labelRequest struct {
	Label string `json:"label" binding:"required"`
}

func (s *Server) toggle(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess := currentSession(c)
	selected, err := sess.State.Toggle(req.Label)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"label": req.Label, "selected": selected, "selection": sess.State.Snapshot()})
}

func (s *Server) commit(c *gin.Context) {
	sess := currentSession(c)
	if _, err := sess.State.Merge(); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selection": sess.State.Snapshot()})
}

func (s *Server) addToBasket(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess := currentSession(c)
	if _, err := sess.State.Add(req.Label); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selection": sess.State.Snapshot()})
}

func (s *Server) removeFromBasket(c *gin.Context) {
	sess := currentSession(c)
	sess.State.Remove(c.Param("label"))
	c.JSON(http.StatusOK, gin.H{"selection": sess.State.Snapshot()})
}

// sessionRecipes resolves the basket to canonical ingredients and lists matching recipes.
func (s *Server) sessionRecipes(c *gin.Context) {
	sess := currentSession(c)
	ctx := c.Request.Context()

	resolved, missing, err := s.recipes.Resolve(ctx, sess.State.Basket())
	if err != nil {
		abort(c, err)
		return
	}
	titles := make([]string, len(resolved))
	for i, ing := range resolved {
		titles[i] = ing.Title
	}

	found := []recipes.Summary{}
	if len(titles) > 0 {
		found, err = s.recipes.RecipesByIngredients(ctx, titles, pageParam(c))
		if err != nil {
			abort(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"ingredients": resolved,
		"unmatched":   missing,
		"recipes":     found,
	})
}

func (s *Server) ingredients(c *gin.Context) {
	var (
		out []recipes.Ingredient
		err error
	)
	if q := c.Query("q"); q != "" {
		out, err = s.recipes.SearchIngredient(c.Request.Context(), q)
	} else {
		out, err = s.recipes.Ingredients(c.Request.Context(), 0)
	}
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listRecipes(c *gin.Context) {
	var (
		out []recipes.Summary
		err error
	)
	if q := c.Query("q"); q != "" {
		out, err = s.recipes.SearchRecipes(c.Request.Context(), q)
	} else {
		out, err = s.recipes.Recipes(c.Request.Context(), pageParam(c))
	}
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) recipe(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("recipe"))
	if err != nil {
		badRequest(c, errors.New("recipe id must be a number"))
		return
	}
	out, err := s.recipes.Recipe(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
