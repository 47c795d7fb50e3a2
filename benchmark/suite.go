package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/models"
	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/profiler"
	"github.com/nvr-ai/ingredient-vision/util"
)

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	// Model is the loaded detector shared by every scenario.
	Model *pipeline.Model
	// Labels maps detector classes to ingredient names.
	Labels *models.LabelTable
	// OutputPath is the directory results are written to.
	OutputPath string
	Logger     logrus.FieldLogger
	// Tracker, if set, accumulates stage timings across every scenario.
	Tracker *profiler.Tracker
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	model     *pipeline.Model
	labels    *models.LabelTable
	outputDir string
	logger    logrus.FieldLogger
	tracker   *profiler.Tracker

	mu        sync.RWMutex
	scenarios []Scenario
	corpus    []util.ImageFile
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
//   - error: An error if the model or labels are missing.
func NewSuite(args NewSuiteArgs) (*Suite, error) {
	if args.Model == nil || args.Labels == nil {
		return nil, errors.New("benchmark suite needs a model and a label table")
	}
	if args.Logger == nil {
		args.Logger = logrus.StandardLogger()
	}
	return &Suite{
		model:     args.Model,
		labels:    args.Labels,
		outputDir: args.OutputPath,
		logger:    args.Logger,
		tracker:   args.Tracker,
	}, nil
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// AddScenarioSet adds every scenario of set.
func (bs *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, s := range set.Scenarios {
		bs.AddScenario(s)
	}
}

// LoadCorpus reads the photos at path, a file or a directory.
func (bs *Suite) LoadCorpus(path string) error {
	files, err := util.LoadImageFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no photos found in %s", path)
	}
	bs.SetCorpus(files)
	return nil
}

// SetCorpus replaces the photos the scenarios run over.
func (bs *Suite) SetCorpus(files []util.ImageFile) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.corpus = files
}

// RunScenario executes a single benchmark scenario
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	bs.mu.RLock()
	corpus := bs.corpus
	bs.mu.RUnlock()
	if len(corpus) == 0 {
		return nil, errors.New("benchmark corpus is empty")
	}

	p, err := pipeline.NewBuilder().
		WithModel(bs.model).
		WithLabels(bs.labels).
		WithConfig(scenario.Pipeline).
		WithLogger(bs.logger).
		WithTracker(bs.tracker).
		Build()
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	metrics := &PerformanceMetrics{
		Scenario:       scenario,
		Timestamp:      time.Now(),
		StageDurations: make(map[string]time.Duration),
		Failures:       make(map[string]int),
	}

	// Warm-up errors surface again in the measured runs.
	for i := 0; i < scenario.WarmupRuns; i++ {
		_, _ = p.RunBytes(ctx, corpus[i%len(corpus)].Data)
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	startTime := time.Now()
	failed := 0
	succeeded := 0

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.RunBytes(ctx, corpus[i%len(corpus)].Data)
		if err != nil {
			failed++
			metrics.Failures[string(pipeline.KindOf(err))]++
			continue
		}

		succeeded++
		metrics.LabelCount += res.Labels.Len()
		if res.Status == pipeline.StatusNothingDetected {
			metrics.NothingDetected++
		}
		for stage, d := range res.Timings {
			metrics.StageDurations[stage] += d
		}
	}

	totalDuration := time.Since(startTime)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if succeeded > 0 {
		for stage, d := range metrics.StageDurations {
			metrics.StageDurations[stage] = d / time.Duration(succeeded)
		}
	}
	metrics.TotalDuration = totalDuration
	metrics.FramesPerSecond = float64(scenario.Iterations) / totalDuration.Seconds()
	metrics.ErrorRate = float64(failed) / float64(scenario.Iterations)

	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}
	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}

	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios and saves the results.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	bs.mu.RLock()
	scenarios := make([]Scenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			bs.logger.WithError(err).WithField("scenario", scenario.Name).Error("scenario failed")
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.WithFields(logrus.Fields{
			"scenario":   scenario.Name,
			"fps":        fmt.Sprintf("%.2f", metrics.FramesPerSecond),
			"labels":     metrics.LabelCount,
			"error_rate": metrics.ErrorRate,
		}).Info("scenario completed")
	}

	return bs.SaveResults()
}

// SaveResults persists benchmark results to filesystem
func (bs *Suite) SaveResults() error {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return errors.Wrap(err, "failed to save summary CSV")
	}

	bs.logger.WithFields(logrus.Fields{
		"results": resultsFile,
		"summary": summaryFile,
	}).Info("benchmark results saved")
	return nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{
		"scenario", "threshold", "fit_capture", "fps", "total_ms", "alloc_mb", "labels", "nothing_detected", "error_rate",
	}); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write([]string{
			r.Scenario.Name,
			strconv.FormatFloat(float64(r.Scenario.Pipeline.Threshold), 'f', 2, 32),
			strconv.FormatBool(r.Scenario.Pipeline.FitCapture),
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			strconv.FormatFloat(float64(r.TotalDuration.Nanoseconds())/1e6, 'f', 2, 64),
			strconv.FormatFloat(float64(r.MemoryStats.AllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.Itoa(r.LabelCount),
			strconv.Itoa(r.NothingDetected),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
