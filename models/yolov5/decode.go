// Package yolov5 - Decodes the raw YOLOv5 detection head into detector slots.
package yolov5

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/images"
	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/models/postprocess"
)

// DefaultMaxDetections is the slot count of the tfjs YOLOv5 export used by the app.
const DefaultMaxDetections = 100

// DefaultCandidateThreshold drops rows that cannot matter before suppression.
const DefaultCandidateThreshold float32 = 0.001

// Config describes one YOLOv5 head.
type Config struct {
	// InputWidth is the model input width in pixels.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the model input height in pixels.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// Normalized is true when the head already emits boxes in [0, 1].
	Normalized bool `json:"normalized" yaml:"normalized"`
	// CandidateThreshold drops rows whose combined score is below it.
	CandidateThreshold float32 `json:"candidate_threshold" yaml:"candidate_threshold"`
	// NMS configures suppression; NMS.MaxResults is the number of output slots.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// DefaultConfig returns the decoder settings for a 640x640 export.
func DefaultConfig() Config {
	nms := postprocess.DefaultNMSConfig()
	nms.MaxResults = DefaultMaxDetections
	return Config{
		InputWidth:         640,
		InputHeight:        640,
		CandidateThreshold: DefaultCandidateThreshold,
		NMS:                nms,
	}
}

// Decode converts a [rows, cols] YOLOv5 head into detector slots.
//
// Each row is (cx, cy, w, h, objectness, class scores...). The slot score is objectness times
// the best class score and the slot class is that best class. Rows are suppressed with greedy
// NMS and the survivors are emitted strongest first, which matches what an export with an
// embedded NMS layer returns.
//
// Arguments:
//   - head: The flattened head output.
//   - rows: The number of candidate rows.
//   - cols: 5 + the number of classes.
//   - cfg: The decoder configuration.
//
// Returns:
//   - *inference.Output: Boxes normalised to the input tensor, scores and classes.
//   - error: inference.ErrInference if the head does not match rows x cols.
func Decode(head []float32, rows, cols int, cfg Config) (*inference.Output, error) {
	if cols < 6 {
		return nil, errors.Wrapf(inference.ErrInference, "yolov5 head needs at least 6 columns, got %d", cols)
	}
	if rows < 0 || len(head) != rows*cols {
		return nil, errors.Wrapf(inference.ErrInference, "yolov5 head holds %d values, expected %dx%d", len(head), rows, cols)
	}

	sx, sy := float32(1), float32(1)
	if !cfg.Normalized {
		if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
			return nil, errors.Wrap(inference.ErrInference, "input size is required for pixel-space heads")
		}
		sx, sy = 1/float32(cfg.InputWidth), 1/float32(cfg.InputHeight)
	}

	candidates := make([]postprocess.Result, 0, 64)
	for i := 0; i < rows; i++ {
		row := head[i*cols : (i+1)*cols]
		objConf := row[4]
		if objConf < cfg.CandidateThreshold {
			continue
		}

		classID := 0
		maxScore := float32(0)
		for j := 5; j < cols; j++ {
			if row[j] > maxScore {
				maxScore = row[j]
				classID = j - 5
			}
		}

		score := objConf * maxScore
		if score < cfg.CandidateThreshold {
			continue
		}

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		candidates = append(candidates, postprocess.Result{
			Box: images.Rect{
				X1: (cx - w/2) * sx,
				Y1: (cy - h/2) * sy,
				X2: (cx + w/2) * sx,
				Y2: (cy + h/2) * sy,
			}.Clamp(1, 1),
			Score: score,
			Class: classID,
		})
	}

	kept := postprocess.ApplyGreedyNMS(candidates, cfg.NMS)
	out := &inference.Output{
		Boxes:   make([]images.Rect, len(kept)),
		Scores:  make([]float32, len(kept)),
		Classes: make([]int, len(kept)),
	}
	for i, r := range kept {
		out.Boxes[i] = r.Box
		out.Scores[i] = r.Score
		out.Classes[i] = r.Class
	}
	return out, nil
}
