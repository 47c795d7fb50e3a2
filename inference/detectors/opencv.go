//go:build gocv

package detectors

import (
	"context"
	"image"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/models/yolov5"
)

// OpenCV runs a YOLOv5 ONNX export through the OpenCV DNN module.
type OpenCV struct {
	mu         sync.Mutex
	net        gocv.Net
	closed     bool
	inputShape image.Point
	yolo       yolov5.Config
}

// NewOpenCV loads the model at cfg.ModelPath with gocv.ReadNetFromONNX.
//
// Arguments:
//   - cfg: The detector configuration. The output layout must be yolo.
//
// Returns:
//   - inference.Runtime: The runtime.
//   - error: An error if the model cannot be read.
func NewOpenCV(cfg Config) (inference.Runtime, error) {
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to read ONNX model %s", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "error setting DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "error setting DNN target")
	}

	input := cfg.InputShape
	if input.X <= 0 || input.Y <= 0 {
		input = image.Pt(640, 640)
	}

	return &OpenCV{
		net:        net,
		inputShape: input,
		yolo:       cfg.yoloConfig(input, cfg.MaxDetections),
	}, nil
}

// Execute runs the network on input.
func (o *OpenCV) Execute(ctx context.Context, input *inference.InputTensor) (*inference.Output, error) {
	if err := input.Expect(o.inputShape); err != nil {
		return nil, err
	}
	data := input.Data()

	return runAsync(ctx, func() (*inference.Output, error) {
		return o.run(data)
	})
}

func (o *OpenCV) run(data []float32) (*inference.Output, error) {
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
	img, err := gocv.NewMatFromBytes(o.inputShape.Y, o.inputShape.X, gocv.MatTypeCV32FC3, raw)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrInference, "error wrapping input: %v", err)
	}
	defer img.Close()

	// The tensor is already scaled to [0, 1] and sized, so the blob is a plain HWC to NCHW copy.
	blob := gocv.BlobFromImage(img, 1.0, o.inputShape, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, errors.Wrap(inference.ErrInference, "network is closed")
	}

	o.net.SetInput(blob, "")
	out := o.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, errors.Wrap(inference.ErrInference, "network returned empty output")
	}

	dims := out.Size()
	if len(dims) < 2 {
		return nil, errors.Wrapf(inference.ErrInference, "unexpected yolo head shape %v", dims)
	}
	rows, cols := dims[len(dims)-2], dims[len(dims)-1]

	head, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrapf(inference.ErrInference, "error reading output: %v", err)
	}
	return yolov5.Decode(toFloats(head), rows, cols, o.yolo)
}

// InputShape returns (Tᵂ, Tᴴ).
func (o *OpenCV) InputShape() image.Point {
	return o.inputShape
}

// MaxDetections returns the slot count N.
func (o *OpenCV) MaxDetections() int {
	return o.yolo.NMS.MaxResults
}

// Close releases the network.
func (o *OpenCV) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	return o.net.Close()
}
