package detectors

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/inference/providers"
	"github.com/nvr-ai/ingredient-vision/models/yolov5"
)

// ONNX runs a detector through ONNX Runtime.
type ONNX struct {
	mu            sync.Mutex
	session       *ort.DynamicAdvancedSession
	layout        InputLayout
	outputLayout  OutputLayout
	outputNames   []string
	inputShape    image.Point
	maxDetections int
	yolo          yolov5.Config
}

// NewONNX loads the model at cfg.ModelPath into a dynamic ONNX Runtime session.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Model inspection: resolves input/output names, input size and slot count.
//  3. Session options: threading, graph optimization and the execution provider.
//  4. Session creation: binds the model to the resolved names.
//
// Arguments:
//   - cfg: The detector configuration.
//
// Returns:
//   - *ONNX: The runtime.
//   - error: An error if the library, the model or the session cannot be set up.
func NewONNX(cfg Config) (*ONNX, error) {
	if err := providers.Initialize(cfg.Provider); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect model %s", cfg.ModelPath)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.Errorf("model %s declares no inputs or outputs", cfg.ModelPath)
	}

	inputName := cfg.InputName
	if inputName == "" {
		inputName = inputs[0].Name
	}
	inputShape := cfg.InputShape
	if inputShape.X == 0 || inputShape.Y == 0 {
		inputShape = declaredInputShape(inputs[0].Dimensions, cfg.InputLayout)
	}
	if inputShape.X <= 0 || inputShape.Y <= 0 {
		return nil, errors.Errorf("model %s has a dynamic input size; set input_shape", cfg.ModelPath)
	}

	outputNames, err := resolveOutputNames(cfg, outputs)
	if err != nil {
		return nil, err
	}

	maxDetections := cfg.MaxDetections
	if maxDetections == 0 && cfg.OutputLayout == OutputLayoutSplit {
		maxDetections = declaredSlots(outputs, outputNames[1])
	}

	options, err := providers.NewSessionOptions(cfg.Provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{inputName}, outputNames, options)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &ONNX{
		session:       session,
		layout:        cfg.InputLayout,
		outputLayout:  cfg.OutputLayout,
		outputNames:   outputNames,
		inputShape:    inputShape,
		maxDetections: maxDetections,
		yolo:          cfg.yoloConfig(inputShape, maxDetections),
	}, nil
}

// Execute runs the model on input.
func (o *ONNX) Execute(ctx context.Context, input *inference.InputTensor) (*inference.Output, error) {
	if err := input.Expect(o.inputShape); err != nil {
		return nil, err
	}

	data := input.Data()
	shape := ort.NewShape(1, int64(o.inputShape.Y), int64(o.inputShape.X), inference.Channels)
	if o.layout == InputLayoutNCHW {
		chw, err := input.CHW()
		if err != nil {
			return nil, err
		}
		data = chw
		shape = ort.NewShape(1, inference.Channels, int64(o.inputShape.Y), int64(o.inputShape.X))
	}

	return runAsync(ctx, func() (*inference.Output, error) {
		return o.run(shape, data)
	})
}

// run owns every native value it creates, so it is safe to abandon from Execute.
func (o *ONNX) run(shape ort.Shape, data []float32) (*inference.Output, error) {
	tensor, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrInference, "error creating input tensor: %v", err)
	}
	defer tensor.Destroy()

	outputs := make([]ort.Value, len(o.outputNames))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return nil, errors.Wrap(inference.ErrInference, "session is closed")
	}
	err = o.session.Run([]ort.Value{tensor}, outputs)
	o.mu.Unlock()
	if err != nil {
		return nil, errors.Wrapf(inference.ErrInference, "error running ORT session: %v", err)
	}

	return o.decode(outputs)
}

func (o *ONNX) decode(outputs []ort.Value) (*inference.Output, error) {
	switch o.outputLayout {
	case OutputLayoutYOLO:
		head, err := floatData(outputs[0])
		if err != nil {
			return nil, err
		}
		dims := outputs[0].GetShape()
		if len(dims) < 2 {
			return nil, errors.Wrapf(inference.ErrInference, "unexpected yolo head shape %v", dims)
		}
		rows, cols := int(dims[len(dims)-2]), int(dims[len(dims)-1])
		return yolov5.Decode(head, rows, cols, o.yolo)

	default:
		boxes, err := floatData(outputs[0])
		if err != nil {
			return nil, err
		}
		scores, err := floatData(outputs[1])
		if err != nil {
			return nil, err
		}
		classes, err := intData(outputs[2])
		if err != nil {
			return nil, err
		}
		num := -1
		if len(outputs) > 3 {
			counts, err := intData(outputs[3])
			if err != nil {
				return nil, err
			}
			if len(counts) > 0 {
				num = counts[0]
			}
		}
		return decodeSplit(boxes, scores, classes, num)
	}
}

// InputShape returns (Tᵂ, Tᴴ).
func (o *ONNX) InputShape() image.Point {
	return o.inputShape
}

// MaxDetections returns the slot count N, or 0 when the model does not declare it.
func (o *ONNX) MaxDetections() int {
	return o.maxDetections
}

// Close releases the session.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

// declaredInputShape reads (W, H) from the model input dimensions; dynamic axes come back as -1.
func declaredInputShape(dims ort.Shape, layout InputLayout) image.Point {
	if len(dims) != 4 {
		return image.Point{}
	}
	if layout == InputLayoutNCHW {
		return image.Pt(int(dims[3]), int(dims[2]))
	}
	return image.Pt(int(dims[2]), int(dims[1]))
}

// declaredSlots reads N from the scores output, or 0 when it is dynamic.
func declaredSlots(outputs []ort.InputOutputInfo, scoresName string) int {
	for _, info := range outputs {
		if info.Name != scoresName || len(info.Dimensions) == 0 {
			continue
		}
		if n := info.Dimensions[len(info.Dimensions)-1]; n > 0 {
			return int(n)
		}
	}
	return 0
}

func resolveOutputNames(cfg Config, outputs []ort.InputOutputInfo) ([]string, error) {
	if len(cfg.OutputNames) > 0 {
		return cfg.OutputNames, nil
	}

	names := make([]string, 0, len(outputs))
	for _, info := range outputs {
		names = append(names, info.Name)
	}

	switch cfg.OutputLayout {
	case OutputLayoutYOLO:
		return names[:1], nil
	default:
		if len(names) < 3 {
			return nil, errors.Errorf("split layout needs at least 3 outputs, model has %d", len(names))
		}
		if len(names) > 4 {
			names = names[:4]
		}
		return names, nil
	}
}

func floatData(v ort.Value) ([]float32, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return toFloats(t.GetData()), nil
	case *ort.Tensor[float64]:
		return toFloats(t.GetData()), nil
	case *ort.Tensor[int32]:
		return toFloats(t.GetData()), nil
	case *ort.Tensor[int64]:
		return toFloats(t.GetData()), nil
	default:
		return nil, errors.Wrapf(inference.ErrInference, "unsupported output type %T", v)
	}
}

func intData(v ort.Value) ([]int, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return toInts(t.GetData()), nil
	case *ort.Tensor[float64]:
		return toInts(t.GetData()), nil
	case *ort.Tensor[int32]:
		return toInts(t.GetData()), nil
	case *ort.Tensor[int64]:
		return toInts(t.GetData()), nil
	default:
		return nil, errors.Wrapf(inference.ErrInference, "unsupported output type %T", v)
	}
}
