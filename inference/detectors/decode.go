package detectors

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/images"
	"github.com/nvr-ai/ingredient-vision/inference"
)

// decodeSplit assembles the outputs of an export with an embedded NMS.
//
// boxes holds 4 values per slot (x1, y1, x2, y2), normalised to the input. num, when
// non-negative, is the count of valid leading slots.
func decodeSplit(boxes, scores []float32, classes []int, num int) (*inference.Output, error) {
	if len(boxes) != 4*len(scores) || len(scores) != len(classes) {
		return nil, errors.Wrapf(inference.ErrInference, "malformed output: %d box values, %d scores, %d classes",
			len(boxes), len(scores), len(classes))
	}

	out := &inference.Output{
		Boxes:   make([]images.Rect, len(scores)),
		Scores:  scores,
		Classes: classes,
	}
	for i := range out.Boxes {
		b := boxes[i*4 : i*4+4]
		out.Boxes[i] = images.Rect{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]}
	}
	if num >= 0 {
		out.Truncate(num)
	}
	return out, nil
}

// toInts converts class indices emitted as floats.
func toInts[T float32 | float64 | int32 | int64](values []T) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(math.Round(float64(v)))
	}
	return out
}

// toFloats copies values into a new float32 slice.
func toFloats[T float32 | float64 | int32 | int64](values []T) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
