// Package recipes - Client for the recipe and ingredient HTTP service.
package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Page sizes and limits used by the service.
const (
	IngredientsLimit   = 42
	RecipesPageSize    = 8
	ByIngredientsPage  = 16
	DefaultHTTPTimeout = 10 * time.Second
)

// ErrUnavailable is returned when the service cannot be reached or answers with a server error.
var ErrUnavailable = errors.New("recipe service unavailable")

// Error is a non-2xx answer from the service.
type Error struct {
	Status int
	Path   string
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("recipe service %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Is matches ErrUnavailable for 5xx answers.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable && e.Status >= http.StatusInternalServerError
}

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, such as http://localhost:7000.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// Timeout bounds each request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return errors.Wrap(err, "invalid base_url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}

// Client queries the recipe service. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger logrus.FieldLogger
}

// NewClient creates a client.
//
// Arguments:
//   - cfg: The service configuration.
//   - logger: Receives one debug entry per request.
//
// Returns:
//   - *Client: The client.
//   - error: An error if cfg is invalid.
func NewClient(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Ingredients lists up to limit ingredients. Non-positive limits use IngredientsLimit.
func (c *Client) Ingredients(ctx context.Context, limit int) ([]Ingredient, error) {
	if limit <= 0 {
		limit = IngredientsLimit
	}
	var out []Ingredient
	err := c.get(ctx, "/ingredients", url.Values{"limit": {strconv.Itoa(limit)}}, &out)
	return out, err
}

// SearchIngredient finds ingredients whose name matches name.
func (c *Client) SearchIngredient(ctx context.Context, name string) ([]Ingredient, error) {
	var out []Ingredient
	err := c.get(ctx, "/searchIngredient", url.Values{"ingredient": {name}}, &out)
	return out, err
}

// Resolve maps detected labels to canonical ingredients, taking the first match for each.
//
// Labels without a match are skipped. Duplicate records are returned once.
//
// Arguments:
//   - ctx: Cancels the lookups.
//   - labels: The selected ingredient labels.
//
// Returns:
//   - []Ingredient: The records in label order.
//   - []string: The labels with no match.
//   - error: The first request failure.
func (c *Client) Resolve(ctx context.Context, labels []string) ([]Ingredient, []string, error) {
	seen := make(map[int]struct{}, len(labels))
	out := make([]Ingredient, 0, len(labels))
	var missing []string

	for _, label := range labels {
		matches, err := c.SearchIngredient(ctx, label)
		if err != nil {
			return nil, nil, err
		}
		if len(matches) == 0 {
			missing = append(missing, label)
			continue
		}
		first := matches[0]
		if _, ok := seen[first.ID]; ok {
			continue
		}
		seen[first.ID] = struct{}{}
		out = append(out, first)
	}
	return out, missing, nil
}

// RecipesByIngredients lists recipes using the named ingredients, ByIngredientsPage per page.
// Pages start at 1.
func (c *Client) RecipesByIngredients(ctx context.Context, ingredients []string, page int) ([]Summary, error) {
	var out []Summary
	query := pageQuery(page, ByIngredientsPage)
	query.Set("ingredients", strings.Join(ingredients, ","))
	err := c.get(ctx, "/recipesByIngredients", query, &out)
	return out, err
}

// SearchRecipes finds recipes whose title matches q.
func (c *Client) SearchRecipes(ctx context.Context, q string) ([]Summary, error) {
	var out []Summary
	err := c.get(ctx, "/searchRecipes", url.Values{"recipe": {q}}, &out)
	return out, err
}

// Recipes lists recipes, RecipesPageSize per page. Pages start at 1.
func (c *Client) Recipes(ctx context.Context, page int) ([]Summary, error) {
	var out []Summary
	err := c.get(ctx, "/recipes", pageQuery(page, RecipesPageSize), &out)
	return out, err
}

// Recipe fetches one recipe.
func (c *Client) Recipe(ctx context.Context, id int) (*Recipe, error) {
	var out Recipe
	if err := c.get(ctx, "/recipes/"+strconv.Itoa(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func pageQuery(page, size int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{
		"offset": {strconv.Itoa((page - 1) * size)},
		"limit":  {strconv.Itoa(size)},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "error building request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrUnavailable, "%s: %v", path, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("recipe service request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Status: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "error decoding %s response", path)
	}
	return nil
}
