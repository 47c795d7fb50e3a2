package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/benchmark"
	"github.com/nvr-ai/ingredient-vision/config"
	"github.com/nvr-ai/ingredient-vision/logging"
	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/profiler"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML configuration file")
		scenarioFile = flag.String("scenarios", "", "Path to a YAML or JSON scenario set")
		outputDir    = flag.String("output", "./benchmark_results", "Output directory for results")
		testImages   = flag.String("images", "", "Path to test photos directory or file")
		modelPath    = flag.String("model", "", "Path to ONNX model file (overrides config)")
		quick        = flag.Bool("quick", false, "Run quick benchmark scenarios")
		thresholds   = flag.Bool("thresholds", false, "Sweep score thresholds")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	if *testImages == "" {
		logrus.Fatal("test photos path is required (-images)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if *modelPath != "" {
		cfg.Detector.ModelPath = *modelPath
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	table, err := cfg.Labels.Table()
	if err != nil {
		logger.WithError(err).Fatal("failed to load labels")
	}

	tracker := profiler.NewTracker(profiler.Options{})
	model := pipeline.NewModel(cfg.Detector,
		pipeline.WithModelLogger(logger),
		pipeline.WithModelTracker(tracker),
	)
	defer model.Close()
	if err := model.Load(ctx); err != nil {
		logger.WithError(err).Fatal("failed to load model")
	}

	suite, err := benchmark.NewSuite(benchmark.NewSuiteArgs{
		Model:      model,
		Labels:     table,
		OutputPath: *outputDir,
		Logger:     logger,
		Tracker:    tracker,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create benchmark suite")
	}
	if err := suite.LoadCorpus(*testImages); err != nil {
		logger.WithError(err).Fatal("failed to load test photos")
	}

	switch {
	case *scenarioFile != "":
		set, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			logger.WithError(err).Fatal("failed to load scenario file")
		}
		suite.AddScenarioSet(set)
	case *thresholds:
		suite.AddScenarioSet(benchmark.ThresholdScenarios())
	case *quick:
		suite.AddScenarioSet(benchmark.QuickScenarios())
	default:
		scenario := benchmark.NewScenarioBuilder("configured").Build()
		scenario.Pipeline = cfg.Pipeline
		suite.AddScenario(scenario)
	}

	if err := suite.RunAllScenarios(ctx); err != nil {
		logger.WithError(err).Fatal("benchmark failed")
	}
	tracker.Report(logger)
}
