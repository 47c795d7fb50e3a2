package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/inference/detectors"
	"github.com/nvr-ai/ingredient-vision/profiler"
)

// ErrNotLoaded is returned by Model.Runtime before the first successful load.
var ErrNotLoaded = errors.New("model is not loaded")

// Loader creates a runtime for a detector configuration.
type Loader func(ctx context.Context, cfg detectors.Config) (inference.Runtime, error)

// ModelStatus describes the state of a Model.
type ModelStatus struct {
	Loaded   bool      `json:"loaded"`
	Path     string    `json:"path"`
	Error    string    `json:"error,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// Model is the process-wide detector handle.
//
// It is loaded once and shared read-only by every run. A failed load is remembered: Runtime keeps
// returning it until Retry is called.
type Model struct {
	cfg     detectors.Config
	load    Loader
	logger  logrus.FieldLogger
	tracker *profiler.Tracker

	mu       sync.RWMutex
	runtime  inference.Runtime
	err      error
	attempts int
	loadedAt time.Time
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithLoader replaces detectors.Load.
func WithLoader(load Loader) ModelOption {
	return func(m *Model) { m.load = load }
}

// WithModelLogger sets the logger.
func WithModelLogger(logger logrus.FieldLogger) ModelOption {
	return func(m *Model) { m.logger = logger }
}

// WithModelTracker records load durations on tracker.
func WithModelTracker(tracker *profiler.Tracker) ModelOption {
	return func(m *Model) { m.tracker = tracker }
}

// NewModel creates an unloaded model handle.
//
// Arguments:
//   - cfg: The detector configuration.
//   - options: Optional loader, logger and tracker.
//
// Returns:
//   - *Model: The handle. Call Load before the first run.
func NewModel(cfg detectors.Config, options ...ModelOption) *Model {
	m := &Model{
		cfg:    cfg,
		load:   detectors.Load,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// NewModelFromRuntime wraps an already loaded runtime.
func NewModelFromRuntime(rt inference.Runtime, options ...ModelOption) *Model {
	m := NewModel(detectors.Config{}, options...)
	m.runtime = rt
	m.attempts = 1
	m.loadedAt = time.Now()
	return m
}

// Load loads the detector once. Later calls return the outcome of the first completed load.
//
// A cancelled load is not remembered, so Load may be called again.
func (m *Model) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attempts > 0 {
		if m.err != nil {
			return &Error{Kind: KindModelLoad, Err: m.err}
		}
		return nil
	}
	return m.loadLocked(ctx)
}

// Retry discards the current runtime or load error and loads again.
func (m *Model) Retry(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("model", m.cfg.ModelPath).Info("reloading model")
	return m.loadLocked(ctx)
}

func (m *Model) loadLocked(ctx context.Context) error {
	start := time.Now()
	rt, err := m.load(ctx, m.cfg)
	if m.tracker != nil {
		m.tracker.Observe(profiler.StageLoad, time.Since(start))
	}

	log := m.logger.WithFields(logrus.Fields{
		"stage":    profiler.StageLoad,
		"model":    m.cfg.ModelPath,
		"duration": time.Since(start),
	})

	if err != nil {
		if ctx.Err() != nil {
			log.WithError(err).Warn("model load cancelled")
			return &Error{Kind: KindCancelled, Err: err}
		}
		log.WithError(err).Error("model load failed")
		m.closeRuntime()
		m.err = err
		m.attempts++
		return &Error{Kind: KindModelLoad, Err: err}
	}

	m.closeRuntime()
	m.runtime = rt
	m.err = nil
	m.attempts++
	m.loadedAt = time.Now()
	log.WithField("input", rt.InputShape()).Info("model loaded")
	return nil
}

func (m *Model) closeRuntime() {
	if m.runtime == nil {
		return
	}
	if err := m.runtime.Close(); err != nil {
		m.logger.WithError(err).Warn("error closing runtime")
	}
	m.runtime = nil
}

// Runtime returns the loaded runtime or the sticky load error.
func (m *Model) Runtime() (inference.Runtime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, &Error{Kind: KindModelLoad, Err: m.err}
	}
	if m.runtime == nil {
		return nil, &Error{Kind: KindModelLoad, Err: ErrNotLoaded}
	}
	return m.runtime, nil
}

// Status reports whether the model is loaded.
func (m *Model) Status() ModelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := ModelStatus{
		Loaded: m.runtime != nil,
		Path:   m.cfg.ModelPath,
	}
	if m.err != nil {
		status.Error = m.err.Error()
	}
	if m.runtime != nil {
		status.LoadedAt = m.loadedAt
	}
	return status
}

// Close releases the runtime.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runtime == nil {
		return nil
	}
	err := m.runtime.Close()
	m.runtime = nil
	return err
}
