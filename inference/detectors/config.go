// Package detectors - Native detector runtimes and their loading.
package detectors

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/inference/providers"
	"github.com/nvr-ai/ingredient-vision/models/yolov5"
)

// InputLayout is the memory layout the model expects for its image input.
type InputLayout string

const (
	// InputLayoutNHWC is channel-last input, as produced by TensorFlow exports.
	InputLayoutNHWC InputLayout = "nhwc"
	// InputLayoutNCHW is channel-first input, as produced by PyTorch exports.
	InputLayoutNCHW InputLayout = "nchw"
)

// OutputLayout is the shape of the model outputs.
type OutputLayout string

const (
	// OutputLayoutSplit is an export with an embedded NMS: boxes [1,N,4], scores [1,N],
	// classes [1,N] and optionally the number of valid slots.
	OutputLayoutSplit OutputLayout = "split"
	// OutputLayoutYOLO is the raw YOLOv5 head [1,rows,5+C], decoded in Go.
	OutputLayoutYOLO OutputLayout = "yolo"
)

// Config describes a detector model and how to run it.
type Config struct {
	// Engine selects the native library.
	Engine inference.EngineType `json:"engine" yaml:"engine"`
	// ModelPath is the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// InputShape is (Tᵂ, Tᴴ). Zero values are read from the model when it declares them.
	InputShape image.Point `json:"input_shape" yaml:"input_shape"`
	// InputLayout is the image input layout.
	InputLayout InputLayout `json:"input_layout" yaml:"input_layout"`
	// OutputLayout is the output layout.
	OutputLayout OutputLayout `json:"output_layout" yaml:"output_layout"`
	// InputName overrides the model input name.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputNames overrides the model output names, in layout order.
	OutputNames []string `json:"output_names" yaml:"output_names"`
	// MaxDetections is the number of slots N. Zero reads it from the model.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// Warmup defines how many inference runs to perform after loading.
	Warmup int `json:"warmup" yaml:"warmup"`
	// Provider configures the ONNX Runtime execution provider.
	Provider providers.Config `json:"provider" yaml:"provider"`
	// YOLO configures decoding of the raw head for OutputLayoutYOLO.
	YOLO yolov5.Config `json:"yolo" yaml:"yolo"`
}

// DefaultConfig returns the settings of the bundled ingredient model: a TensorFlow YOLOv5 export
// with an embedded NMS, 640x640 channel-last input and one warm-up run.
//
// Returns:
//   - Config: Configuration ready for a ModelPath.
func DefaultConfig() Config {
	return Config{
		Engine:        inference.EngineONNX,
		InputShape:    image.Point{X: 640, Y: 640},
		InputLayout:   InputLayoutNHWC,
		OutputLayout:  OutputLayoutSplit,
		MaxDetections: yolov5.DefaultMaxDetections,
		Warmup:        1,
		Provider:      providers.DefaultConfig(),
		YOLO:          yolov5.DefaultConfig(),
	}
}

// Validate checks the configuration before a model is loaded.
func (c Config) Validate() error {
	if _, err := inference.ParseEngine(string(c.Engine)); err != nil {
		return err
	}
	if c.ModelPath == "" {
		return errors.New("model_path is required")
	}
	if c.InputShape.X < 0 || c.InputShape.Y < 0 {
		return errors.Errorf("input_shape must not be negative, got %v", c.InputShape)
	}
	switch c.InputLayout {
	case InputLayoutNHWC, InputLayoutNCHW:
	default:
		return errors.Errorf("unknown input_layout %q", c.InputLayout)
	}
	switch c.OutputLayout {
	case OutputLayoutSplit:
		if n := len(c.OutputNames); n != 0 && n != 3 && n != 4 {
			return errors.Errorf("split layout needs 3 or 4 output names, got %d", n)
		}
	case OutputLayoutYOLO:
		if n := len(c.OutputNames); n > 1 {
			return errors.Errorf("yolo layout needs 1 output name, got %d", n)
		}
	default:
		return errors.Errorf("unknown output_layout %q", c.OutputLayout)
	}
	if c.Engine == inference.EngineOpenCV && c.OutputLayout != OutputLayoutYOLO {
		return errors.New("the opencv engine only supports the yolo output layout")
	}
	if c.MaxDetections < 0 || c.Warmup < 0 {
		return errors.New("max_detections and warmup must not be negative")
	}
	if c.Engine == inference.EngineONNX {
		return c.Provider.Validate()
	}
	return nil
}

// yoloConfig returns the head decoder settings bound to the resolved input size.
func (c Config) yoloConfig(input image.Point, maxDetections int) yolov5.Config {
	y := c.YOLO
	y.InputWidth, y.InputHeight = input.X, input.Y
	if maxDetections > 0 {
		y.NMS.MaxResults = maxDetections
	}
	return y
}
