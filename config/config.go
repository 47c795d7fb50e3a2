// Package config - Service configuration from YAML, .env files and the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/inference/detectors"
	"github.com/nvr-ai/ingredient-vision/inference/providers"
	"github.com/nvr-ai/ingredient-vision/logging"
	"github.com/nvr-ai/ingredient-vision/models"
	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/recipes"
	"github.com/nvr-ai/ingredient-vision/selection"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INGREDIENTS_"

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`
	// MaxUploadBytes bounds a photo upload.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	// ScanTimeout bounds one photo scan.
	ScanTimeout time.Duration `json:"scan_timeout" yaml:"scan_timeout"`
	// SessionTTL expires idle selection sessions.
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl"`
}

// LabelsConfig selects the label table.
type LabelsConfig struct {
	// Family picks a bundled table when Path is empty.
	Family models.ModelFamily `json:"family" yaml:"family"`
	// Path is a YAML or plain text labels file shipped with the model.
	Path string `json:"path" yaml:"path"`
}

// Table loads the configured label table.
func (c LabelsConfig) Table() (*models.LabelTable, error) {
	if c.Path != "" {
		return models.LoadLabels(c.Path)
	}
	return models.BuiltinTable(c.Family)
}

// SelectionConfig configures the ingredient basket.
type SelectionConfig struct {
	Limit int `json:"limit" yaml:"limit"`
}

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig     `json:"server" yaml:"server"`
	Logging   logging.Config   `json:"logging" yaml:"logging"`
	Detector  detectors.Config `json:"detector" yaml:"detector"`
	Labels    LabelsConfig     `json:"labels" yaml:"labels"`
	Pipeline  pipeline.Config  `json:"pipeline" yaml:"pipeline"`
	Selection SelectionConfig  `json:"selection" yaml:"selection"`
	Recipes   recipes.Config   `json:"recipes" yaml:"recipes"`
}

// DefaultConfig returns the settings for the bundled ingredient model on the CPU.
func DefaultConfig() Config {
	detector := detectors.DefaultConfig()
	detector.ModelPath = "models/ingredients.onnx"

	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 16 << 20,
			ScanTimeout:    30 * time.Second,
			SessionTTL:     30 * time.Minute,
		},
		Logging:   logging.DefaultConfig(),
		Detector:  detector,
		Labels:    LabelsConfig{Family: models.ModelFamilyIngredients},
		Pipeline:  pipeline.DefaultConfig(),
		Selection: SelectionConfig{Limit: selection.DefaultLimit},
		Recipes: recipes.Config{
			BaseURL: "http://localhost:7000",
			Timeout: recipes.DefaultHTTPTimeout,
		},
	}
}

// Load builds the configuration.
//
// Order of operations:
//  1. Defaults: DefaultConfig.
//  2. File: the YAML file at path, if path is not empty.
//  3. Dotenv: variables from .env files are added to the environment without replacing it.
//  4. Environment: INGREDIENTS_* variables override the file.
//
// Arguments:
//   - path: The YAML file, or "" for none.
//   - envFiles: Dotenv files to load. Missing files are skipped.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if a file is malformed or the result is invalid.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "error reading config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "error parsing config %s", path)
		}
	}

	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, errors.Wrapf(err, "error loading %s", f)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if c.Server.ScanTimeout < 0 || c.Server.SessionTTL < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if c.Labels.Path == "" {
		if _, err := models.BuiltinTable(c.Labels.Family); err != nil {
			return errors.Wrap(err, "labels")
		}
	}
	if err := c.Pipeline.Validate(); err != nil {
		return errors.Wrap(err, "pipeline")
	}
	if c.Selection.Limit <= 0 {
		return errors.New("selection.limit must be positive")
	}
	if err := c.Recipes.Validate(); err != nil {
		return errors.Wrap(err, "recipes")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from INGREDIENTS_* variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	env := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := env("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := env("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := env("LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
	if v, ok := env("MODEL_PATH"); ok {
		c.Detector.ModelPath = v
	}
	if v, ok := env("ENGINE"); ok {
		engine, err := inference.ParseEngine(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"ENGINE")
		}
		c.Detector.Engine = engine
	}
	if v, ok := env("BACKEND"); ok {
		backend, err := providers.ParseBackend(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"BACKEND")
		}
		c.Detector.Provider.Backend = backend
	}
	if v, ok := env("ORT_LIBRARY"); ok {
		c.Detector.Provider.LibraryPath = v
	}
	if v, ok := env("LABELS"); ok {
		c.Labels.Family = models.ModelFamily(v)
	}
	if v, ok := env("LABELS_FILE"); ok {
		c.Labels.Path = v
	}
	if v, ok := env("RECIPES_URL"); ok {
		c.Recipes.BaseURL = v
	}
	if v, ok := env("RELEVANT_CLASSES"); ok {
		c.Pipeline.RelevantClasses = splitList(v)
	}

	if v, ok := env("THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"THRESHOLD")
		}
		c.Pipeline.Threshold = float32(f)
	}
	if v, ok := env("FIT_CAPTURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"FIT_CAPTURE")
		}
		c.Pipeline.FitCapture = b
	}
	if v, ok := env("WARMUP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"WARMUP")
		}
		c.Detector.Warmup = n
	}
	if v, ok := env("SELECTION_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"SELECTION_LIMIT")
		}
		c.Selection.Limit = n
	}
	if v, ok := env("SCAN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"SCAN_TIMEOUT")
		}
		c.Server.ScanTimeout = d
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
