// Package pipeline - Runs one photo through preprocessing, the detector and label extraction.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/images"
	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/models"
	"github.com/nvr-ai/ingredient-vision/models/postprocess"
	"github.com/nvr-ai/ingredient-vision/profiler"
)

// Config tunes label extraction.
type Config struct {
	// Threshold is the inclusive minimum score for a slot to count.
	Threshold float32 `json:"threshold" yaml:"threshold"`
	// RelevantClasses, when set, keeps only these labels.
	RelevantClasses []string `json:"relevant_classes" yaml:"relevant_classes"`
	// FitCapture crops every photo to the 600x800 capture frame before detection.
	FitCapture bool `json:"fit_capture" yaml:"fit_capture"`
	// OverlapIoU suppresses same-label boxes overlapping above this IoU. Zero keeps every box.
	OverlapIoU float32 `json:"overlap_iou" yaml:"overlap_iou"`
}

// DefaultConfig returns the 0.25 threshold with overlap suppression at 0.45 IoU.
func DefaultConfig() Config {
	return Config{
		Threshold:  postprocess.DefaultThreshold,
		OverlapIoU: postprocess.DefaultIoUThreshold,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !(c.Threshold >= 0 && c.Threshold <= 1) {
		return errors.Wrapf(postprocess.ErrInvalidThreshold, "got %v", c.Threshold)
	}
	if !(c.OverlapIoU >= 0 && c.OverlapIoU <= 1) {
		return errors.Errorf("overlap_iou must be within [0, 1], got %v", c.OverlapIoU)
	}
	return nil
}

// Status distinguishes a photo with ingredients from one without.
type Status string

const (
	// StatusDetected means at least one label was found.
	StatusDetected Status = "detected"
	// StatusNothingDetected means no slot passed the threshold. It is not a failure.
	StatusNothingDetected Status = "nothing_detected"
)

// Result is the outcome of one pipeline run.
type Result struct {
	Status     Status                      `json:"status"`
	Labels     postprocess.DetectionResult `json:"labels"`
	Detections []postprocess.Detection     `json:"detections"`
	Factors    images.ScaleFactors         `json:"scale_factors"`
	Timings    map[string]time.Duration    `json:"timings_ns"`
}

// Pipeline turns photos into ingredient labels.
//
// A Pipeline holds no per-run state and may be shared. Each Run owns its tensors.
type Pipeline struct {
	model   *Model
	table   *models.LabelTable
	cfg     Config
	logger  logrus.FieldLogger
	tracker *profiler.Tracker
}

// Builder assembles a Pipeline with a fluent API.
//
// @example
// p, err := pipeline.NewBuilder().WithModel(model).WithLabels(models.IngredientClasses).Build()
type Builder struct {
	model   *Model
	table   *models.LabelTable
	cfg     Config
	logger  logrus.FieldLogger
	tracker *profiler.Tracker
	err     error
}

// NewBuilder creates a builder with DefaultConfig and the standard logger.
//
// Returns:
//   - *Builder: The builder.
func NewBuilder() *Builder {
	return &Builder{
		cfg:    DefaultConfig(),
		logger: logrus.StandardLogger(),
	}
}

// WithModel sets the detector model.
//
// Arguments:
//   - model: The shared model handle.
//
// Returns:
//   - *Builder: The builder.
func (b *Builder) WithModel(model *Model) *Builder {
	if b.HasError() {
		return b
	}
	b.model = model
	return b
}

// WithLabels sets the label table that matches the model.
func (b *Builder) WithLabels(table *models.LabelTable) *Builder {
	if b.HasError() {
		return b
	}
	b.table = table
	return b
}

// WithConfig sets the extraction settings.
func (b *Builder) WithConfig(cfg Config) *Builder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = err
		return b
	}
	b.cfg = cfg
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithTracker records stage durations on tracker.
func (b *Builder) WithTracker(tracker *profiler.Tracker) *Builder {
	b.tracker = tracker
	return b
}

// HasError checks if the builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *Builder) HasError() bool {
	return b.err != nil
}

// Build builds the pipeline.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: The error if any.
func (b *Builder) Build() (*Pipeline, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.model == nil {
		return nil, errors.New("model not configured")
	}
	if b.table == nil {
		return nil, errors.New("label table not configured")
	}
	for _, label := range b.cfg.RelevantClasses {
		if !b.table.Contains(label) {
			return nil, errors.Errorf("relevant class %q is not in label table %s", label, b.table.Version())
		}
	}

	return &Pipeline{
		model:   b.model,
		table:   b.table,
		cfg:     b.cfg,
		logger:  b.logger,
		tracker: b.tracker,
	}, nil
}

// MustBuild builds the pipeline and panics if there is an error.
func (b *Builder) MustBuild() *Pipeline {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Labels returns the label table.
func (p *Pipeline) Labels() *models.LabelTable {
	return p.table
}

// Model returns the model handle.
func (p *Pipeline) Model() *Model {
	return p.model
}

// RunBytes decodes an encoded photo and runs it.
func (p *Pipeline) RunBytes(ctx context.Context, data []byte) (*Result, error) {
	start := time.Now()
	img, err := images.DecodeBytes(data)
	if err != nil {
		return nil, p.fail(err)
	}
	decoded := time.Since(start)
	p.tracker.Observe(profiler.StageDecode, decoded)

	res, err := p.Run(ctx, img)
	if err != nil {
		return nil, err
	}
	res.Timings[profiler.StageDecode] = decoded
	return res, nil
}

// Run detects the ingredients in img.
//
// Order of operations:
//  1. Runtime: fetch the shared runtime, failing with model_load while the load error stands.
//  2. Preprocess: letterbox into the runtime input size and normalise to [0, 1].
//  3. Execute: run the detector, waiting on ctx.
//  4. Postprocess: filter by threshold, map classes to labels and collapse duplicates.
//
// On any failure no partial result is returned. A run whose ctx ends before it returns is
// discarded with KindCancelled even if the detector finished.
//
// Arguments:
//   - ctx: Cancels the run.
//   - img: The decoded photo.
//
// Returns:
//   - *Result: The labels, detections and timings.
//   - error: A *Error carrying the failure kind.
func (p *Pipeline) Run(ctx context.Context, img *images.Image) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.fail(err)
	}

	rt, err := p.model.Runtime()
	if err != nil {
		return nil, p.fail(err)
	}

	timings := make(map[string]time.Duration, 3)
	stage := func(name string, start time.Time) {
		d := time.Since(start)
		timings[name] = d
		p.tracker.Observe(name, d)
	}

	start := time.Now()
	if p.cfg.FitCapture {
		img, err = images.FitCapture(img, images.CaptureWidth, images.CaptureHeight)
		if err != nil {
			return nil, p.fail(err)
		}
	}
	size := rt.InputShape()
	input, factors, err := inference.Prepare(img, size.X, size.Y)
	if err != nil {
		return nil, p.fail(err)
	}
	stage(profiler.StagePreprocess, start)

	start = time.Now()
	output, err := rt.Execute(ctx, input)
	if ctx.Err() != nil {
		return nil, p.fail(ctx.Err())
	}
	if err != nil {
		return nil, p.fail(errors.Wrap(err, "detector run failed"))
	}
	stage(profiler.StageExecute, start)

	start = time.Now()
	if err := output.Validate(); err != nil {
		return nil, p.fail(err)
	}
	labels, err := postprocess.ExtractLabels(output.Scores, output.Classes, p.cfg.Threshold, p.table)
	if err != nil {
		return nil, p.fail(err)
	}
	detections, err := postprocess.ExtractDetections(output, p.cfg.Threshold, p.table, factors)
	if err != nil {
		return nil, p.fail(err)
	}
	if p.cfg.OverlapIoU > 0 {
		detections = postprocess.SuppressOverlaps(detections, p.cfg.OverlapIoU)
	}
	if len(p.cfg.RelevantClasses) > 0 {
		labels = labels.Only(p.cfg.RelevantClasses)
		detections = onlyLabels(detections, labels)
	}
	stage(profiler.StagePostprocess, start)

	if err := ctx.Err(); err != nil {
		return nil, p.fail(err)
	}

	res := &Result{
		Status:     StatusDetected,
		Labels:     labels,
		Detections: detections,
		Factors:    factors,
		Timings:    timings,
	}
	if labels.Empty() {
		res.Status = StatusNothingDetected
	}
	if res.Detections == nil {
		res.Detections = []postprocess.Detection{}
	}

	p.tracker.RecordMetric("labels", float64(labels.Len()))
	p.logger.WithFields(logrus.Fields{
		"status":   res.Status,
		"labels":   labels.Labels(),
		"slots":    output.Len(),
		"source":   img.Bounds().Size(),
		"input":    size,
		"duration": sumTimings(timings),
	}).Info("photo processed")
	return res, nil
}

func (p *Pipeline) fail(err error) error {
	perr := classify(err)
	p.tracker.RecordFailure(string(perr.Kind))

	log := p.logger.WithField("kind", perr.Kind).WithError(perr.Err)
	if perr.Kind == KindCancelled || perr.Kind == KindInvalidImage {
		log.Warn("photo not processed")
	} else {
		log.Error("photo not processed")
	}
	return perr
}

func onlyLabels(detections []postprocess.Detection, labels postprocess.DetectionResult) []postprocess.Detection {
	out := detections[:0]
	for _, d := range detections {
		if labels.Contains(d.Label) {
			out = append(out, d)
		}
	}
	return out
}

func sumTimings(timings map[string]time.Duration) time.Duration {
	var total time.Duration
	for _, d := range timings {
		total += d
	}
	return total
}
