package postprocess

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/images"
	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/models"
)

// DefaultThreshold is the minimum score for a detection to count as an ingredient.
const DefaultThreshold float32 = 0.25

var (
	// ErrLengthMismatch is returned when scores and class indices differ in length.
	ErrLengthMismatch = errors.New("scores and classes differ in length")
	// ErrInvalidThreshold is returned for a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
	// ErrUnknownClass matches every *UnknownClassError.
	ErrUnknownClass = errors.New("unknown class")
)

// UnknownClassError reports a confident detection whose class has no label.
//
// It usually means the label table does not belong to the loaded model.
type UnknownClassError struct {
	Index     int
	TableSize int
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown class index %d (label table has %d entries)", e.Index, e.TableSize)
}

// Is makes errors.Is(err, ErrUnknownClass) match.
func (e *UnknownClassError) Is(target error) bool {
	return target == ErrUnknownClass
}

// ExtractLabels turns detector scores and class indices into ingredient labels.
//
// Slots are visited in output order. A slot counts when its score is at least threshold; its
// class is then mapped through table and appended unless the label was already seen. Slots
// below the threshold are never looked up. A result with no labels is valid.
//
// Arguments:
//   - scores: Per-slot confidence.
//   - classes: Per-slot class index, same length as scores.
//   - threshold: Inclusive minimum score in [0, 1].
//   - table: The label table of the loaded model.
//
// Returns:
//   - DetectionResult: The labels in first-seen order.
//   - error: ErrLengthMismatch, ErrInvalidThreshold or *UnknownClassError. No partial result
//     is returned on error.
//
// Example Usage:
// ```go
//
//	result, err := ExtractLabels([]float32{0.9, 0.1, 0.9}, []int{0, 1, 0}, 0.25, table)
//	// result.Labels() == []string{"apple"}
//
// ```
func ExtractLabels(scores []float32, classes []int, threshold float32, table *models.LabelTable) (DetectionResult, error) {
	if err := checkInputs(len(scores), len(classes), threshold, table); err != nil {
		return DetectionResult{}, err
	}

	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for i, score := range scores {
		if !(score >= threshold) {
			continue
		}
		name, ok := table.Lookup(classes[i])
		if !ok {
			return DetectionResult{}, &UnknownClassError{Index: classes[i], TableSize: table.Len()}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		labels = append(labels, name)
	}
	return DetectionResult{labels: labels}, nil
}

// ExtractDetections applies the ExtractLabels rules per slot and keeps the boxes.
//
// Every slot at or above threshold becomes one Detection, with its box mapped from tensor
// coordinates to source-image pixels through factors. Repeated labels are kept.
//
// Arguments:
//   - output: The raw detector output.
//   - threshold: Inclusive minimum score in [0, 1].
//   - table: The label table of the loaded model.
//   - factors: The scale factors returned when the input tensor was prepared.
//
// Returns:
//   - []Detection: The detections in output order.
//   - error: inference.ErrInference for malformed output, ErrInvalidThreshold or *UnknownClassError.
func ExtractDetections(
	output *inference.Output,
	threshold float32,
	table *models.LabelTable,
	factors images.ScaleFactors,
) ([]Detection, error) {
	if err := output.Validate(); err != nil {
		return nil, err
	}
	if err := checkInputs(len(output.Scores), len(output.Classes), threshold, table); err != nil {
		return nil, err
	}

	detections := make([]Detection, 0)
	for i, score := range output.Scores {
		if !(score >= threshold) {
			continue
		}
		name, ok := table.Lookup(output.Classes[i])
		if !ok {
			return nil, &UnknownClassError{Index: output.Classes[i], TableSize: table.Len()}
		}
		detections = append(detections, Detection{
			Label: name,
			Class: output.Classes[i],
			Score: score,
			Box:   factors.ToSource(output.Boxes[i]),
		})
	}
	return detections, nil
}

func checkInputs(scores, classes int, threshold float32, table *models.LabelTable) error {
	if scores != classes {
		return errors.Wrapf(ErrLengthMismatch, "%d scores, %d classes", scores, classes)
	}
	if !(threshold >= 0 && threshold <= 1) {
		return errors.Wrapf(ErrInvalidThreshold, "got %v", threshold)
	}
	if table == nil {
		return errors.New("label table is nil")
	}
	return nil
}
