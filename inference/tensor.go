// Package inference - Detector input tensors, raw outputs and the runtime contract.
package inference

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Channels is the number of colour channels every input tensor carries.
const Channels = 3

// InputTensor is the fixed-shape (H, W, 3) float32 input of a detector.
//
// Values are normalised to [0, 1]. The tensor is owned by a single pipeline run and must not be
// shared between runs.
type InputTensor struct {
	dense  *tensor.Dense
	width  int
	height int
}

// NewInputTensor wraps an HWC float32 buffer.
//
// Arguments:
//   - width: The tensor width (Tᵂ).
//   - height: The tensor height (Tᴴ).
//   - data: height*width*3 values laid out row-major, channel last. Ownership passes to the tensor.
//
// Returns:
//   - *InputTensor: The tensor.
//   - error: ErrInference if the buffer does not match the shape.
func NewInputTensor(width, height int, data []float32) (*InputTensor, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInference, "invalid tensor size %dx%d", width, height)
	}
	if want := width * height * Channels; len(data) != want {
		return nil, errors.Wrapf(ErrInference, "tensor buffer holds %d floats, needs %d", len(data), want)
	}

	return &InputTensor{
		dense:  tensor.New(tensor.WithShape(height, width, Channels), tensor.WithBacking(data)),
		width:  width,
		height: height,
	}, nil
}

// Ones returns a tensor filled with 1.0, used to warm a freshly loaded runtime.
func Ones(width, height int) *InputTensor {
	data := make([]float32, width*height*Channels)
	for i := range data {
		data[i] = 1
	}
	t, err := NewInputTensor(width, height, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Size returns (Tᵂ, Tᴴ).
func (t *InputTensor) Size() image.Point {
	return image.Pt(t.width, t.height)
}

// Shape returns the tensor shape, always (H, W, 3).
func (t *InputTensor) Shape() tensor.Shape {
	return t.dense.Shape().Clone()
}

// Data returns the HWC backing buffer. Callers must treat it as read-only.
func (t *InputTensor) Data() []float32 {
	return t.dense.Data().([]float32)
}

// CHW returns a planar copy of the tensor for runtimes that expect channel-first input.
// The receiver is left untouched.
func (t *InputTensor) CHW() ([]float32, error) {
	c, ok := t.dense.Clone().(*tensor.Dense)
	if !ok {
		return nil, errors.Wrap(ErrInference, "unexpected tensor clone type")
	}
	if err := c.T(2, 0, 1); err != nil {
		return nil, errors.Wrapf(ErrInference, "transpose: %v", err)
	}
	if err := c.Transpose(); err != nil {
		return nil, errors.Wrapf(ErrInference, "materialise transpose: %v", err)
	}
	return c.Data().([]float32), nil
}

// Expect fails with ErrInference unless the tensor is exactly size.
func (t *InputTensor) Expect(size image.Point) error {
	if t == nil || t.dense == nil {
		return errors.Wrap(ErrInference, "input tensor is nil")
	}
	if t.width != size.X || t.height != size.Y {
		return errors.Wrapf(ErrInference, "input tensor is %s, model expects %dx%d", t, size.X, size.Y)
	}
	return nil
}

func (t *InputTensor) String() string {
	return fmt.Sprintf("%dx%dx%d", t.height, t.width, Channels)
}
