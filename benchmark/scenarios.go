package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/ingredient-vision/pipeline"
)

// Scenario is one benchmark run: a pipeline configuration applied to the whole corpus.
type Scenario struct {
	Name       string          `json:"name"        yaml:"name"`
	Pipeline   pipeline.Config `json:"pipeline"    yaml:"pipeline"`
	Iterations int             `json:"iterations"  yaml:"iterations"`
	WarmupRuns int             `json:"warmup_runs" yaml:"warmup_runs"`
}

// Validate checks the scenario.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %s: iterations must be positive", s.Name)
	}
	if s.WarmupRuns < 0 {
		return errors.Errorf("scenario %s: warmup_runs must not be negative", s.Name)
	}
	return errors.Wrapf(s.Pipeline.Validate(), "scenario %s", s.Name)
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder with 100 iterations and 10 warm-up runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Pipeline:   pipeline.DefaultConfig(),
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithThreshold sets the score threshold.
func (sb *ScenarioBuilder) WithThreshold(threshold float32) *ScenarioBuilder {
	sb.scenario.Pipeline.Threshold = threshold
	return sb
}

// WithFitCapture crops photos to the capture frame first.
func (sb *ScenarioBuilder) WithFitCapture(fit bool) *ScenarioBuilder {
	sb.scenario.Pipeline.FitCapture = fit
	return sb
}

// WithOverlapIoU sets the overlap suppression threshold.
func (sb *ScenarioBuilder) WithOverlapIoU(iou float32) *ScenarioBuilder {
	sb.scenario.Pipeline.OverlapIoU = iou
	return sb
}

// WithRelevantClasses restricts the labels reported.
func (sb *ScenarioBuilder) WithRelevantClasses(classes ...string) *ScenarioBuilder {
	sb.scenario.Pipeline.RelevantClasses = classes
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// QuickScenarios runs the default configuration with and without the capture crop.
func QuickScenarios() *ScenarioSet {
	return &ScenarioSet{
		Name:        "quick",
		Description: "Default thresholds, full photo and capture frame",
		Scenarios: []Scenario{
			NewScenarioBuilder("default").WithIterations(50).WithWarmupRuns(5).Build(),
			NewScenarioBuilder("capture_frame").WithFitCapture(true).WithIterations(50).WithWarmupRuns(5).Build(),
		},
	}
}

// ThresholdScenarios sweeps the score threshold to show how many labels each setting yields.
func ThresholdScenarios(thresholds ...float32) *ScenarioSet {
	if len(thresholds) == 0 {
		thresholds = []float32{0.1, 0.25, 0.4, 0.55, 0.7}
	}
	set := &ScenarioSet{
		Name:        "threshold",
		Description: "Label counts across score thresholds",
	}
	for _, threshold := range thresholds {
		set.Scenarios = append(set.Scenarios,
			NewScenarioBuilder(fmt.Sprintf("threshold_%.2f", threshold)).
				WithThreshold(threshold).
				WithIterations(20).
				WithWarmupRuns(2).
				Build())
	}
	return set
}

// SaveScenarioSet writes set as YAML or JSON depending on the file extension.
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(set)
	} else {
		data, err = json.MarshalIndent(set, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}
	return errors.Wrap(os.WriteFile(filename, data, 0o644), "failed to write scenario file")
}

// LoadScenarioSet reads a YAML or JSON scenario set and validates every scenario.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var set ScenarioSet
	if isYAML(filename) {
		err = yaml.Unmarshal(data, &set)
	} else {
		err = json.Unmarshal(data, &set)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}

	for _, s := range set.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &set, nil
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}
