package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ingredient-vision/config"
	"github.com/nvr-ai/ingredient-vision/logging"
	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/util"
)

// photoResult is one line of -json output.
type photoResult struct {
	Path   string           `json:"path"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Kind   pipeline.Kind    `json:"kind,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file")
		imagePath  = flag.String("image", "", "Photo or directory of photos to scan")
		modelPath  = flag.String("model", "", "Path to ONNX model file (overrides config)")
		labelsPath = flag.String("labels", "", "Labels file shipped with the model (overrides config)")
		threshold  = flag.Float64("threshold", -1, "Score threshold in [0, 1] (overrides config)")
		fit        = flag.Bool("fit", false, "Crop photos to the 600x800 capture frame first")
		asJSON     = flag.Bool("json", false, "Print one JSON object per photo")
		timeout    = flag.Duration("timeout", 30*time.Second, "Timeout per photo")
	)
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: detect -image <photo|dir> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if *modelPath != "" {
		cfg.Detector.ModelPath = *modelPath
	}
	if *labelsPath != "" {
		cfg.Labels.Path = *labelsPath
	}
	if *threshold >= 0 {
		cfg.Pipeline.Threshold = float32(*threshold)
	}
	if *fit {
		cfg.Pipeline.FitCapture = true
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create logger")
	}

	failed, err := run(cfg, logger, *imagePath, *timeout, *asJSON)
	if err != nil {
		logger.WithError(err).Fatal("detection failed")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *logrus.Logger, path string, timeout time.Duration, asJSON bool) (int, error) {
	files, err := util.LoadImageFiles(path)
	if err != nil {
		return 0, err
	}

	table, err := cfg.Labels.Table()
	if err != nil {
		return 0, err
	}

	model := pipeline.NewModel(cfg.Detector, pipeline.WithModelLogger(logger))
	defer model.Close()
	if err := model.Load(context.Background()); err != nil {
		return 0, err
	}

	p, err := pipeline.NewBuilder().
		WithModel(model).
		WithLabels(table).
		WithConfig(cfg.Pipeline).
		WithLogger(logger).
		Build()
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, file := range files {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		res, err := p.RunBytes(ctx, file.Data)
		cancel()

		if err != nil {
			failed++
		}
		if asJSON {
			out := photoResult{Path: file.Path, Result: res}
			if err != nil {
				out.Error = err.Error()
				out.Kind = pipeline.KindOf(err)
			}
			if err := enc.Encode(out); err != nil {
				return failed, err
			}
			continue
		}

		switch {
		case err != nil:
			fmt.Printf("%s: error: %v\n", file.Path, err)
		case res.Status == pipeline.StatusNothingDetected:
			fmt.Printf("%s: nothing detected\n", file.Path)
		default:
			fmt.Printf("%s: %s\n", file.Path, strings.Join(res.Labels.Labels(), ", "))
		}
	}
	return failed, nil
}
