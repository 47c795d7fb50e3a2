package inference

import (
	"context"
	"image"

	"github.com/nvr-ai/ingredient-vision/images"
	"github.com/pkg/errors"
)

var (
	// ErrModelLoad is returned when a detector cannot be loaded or initialised.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference is returned when a detector run fails or produces malformed output.
	ErrInference = errors.New("inference failed")
)

// Runtime executes a loaded detection model.
//
// Implementations guard their native session so overlapping Execute calls cannot corrupt it.
type Runtime interface {
	// Execute runs the detector on input. It honours ctx while waiting for the native call.
	Execute(ctx context.Context, input *InputTensor) (*Output, error)
	// InputShape returns the fixed (Tᵂ, Tᴴ) the model accepts.
	InputShape() image.Point
	// MaxDetections returns the fixed number of output slots N.
	MaxDetections() int
	// Close releases the native session.
	Close() error
}

// Output holds the raw slots produced by one detector run.
//
// Slot i is described by Boxes[i], Scores[i] and Classes[i]. Boxes are normalised to the input
// tensor. Slots are in the order the detector emitted them.
type Output struct {
	Boxes   []images.Rect `json:"boxes"`
	Scores  []float32     `json:"scores"`
	Classes []int         `json:"classes"`
}

// Len returns the number of slots.
func (o *Output) Len() int {
	return len(o.Scores)
}

// Validate fails with ErrInference when the three slot arrays disagree in length.
func (o *Output) Validate() error {
	if o == nil {
		return errors.Wrap(ErrInference, "detector returned no output")
	}
	if len(o.Boxes) != len(o.Scores) || len(o.Scores) != len(o.Classes) {
		return errors.Wrapf(ErrInference, "malformed output: %d boxes, %d scores, %d classes",
			len(o.Boxes), len(o.Scores), len(o.Classes))
	}
	return nil
}

// Truncate keeps at most n slots.
func (o *Output) Truncate(n int) {
	if n < 0 || n >= o.Len() {
		return
	}
	o.Boxes = o.Boxes[:n]
	o.Scores = o.Scores[:n]
	o.Classes = o.Classes[:n]
}
