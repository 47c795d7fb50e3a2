package postprocess

import (
	"sort"

	"github.com/nvr-ai/ingredient-vision/images"
)

// DefaultIoUThreshold is the overlap above which a weaker box is suppressed.
const DefaultIoUThreshold float32 = 0.45

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
	ClassAware   bool    `json:"class_aware" yaml:"class_aware"`     // If true, suppress only within same class.
	MaxResults   int     `json:"max_results" yaml:"max_results"`     // Keep at most this many boxes; 0 keeps all.
}

// DefaultNMSConfig returns class-aware suppression at DefaultIoUThreshold.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: DefaultIoUThreshold, ClassAware: true}
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Detections are visited in descending score order; ties keep their input order. Each kept box
// suppresses every later box whose IoU with it exceeds the threshold.
//
// Arguments:
//   - detections: Candidate detections in any order. The slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections sorted by descending score, or nil if there are none.
func ApplyGreedyNMS(detections []Result, config NMSConfig) []Result {
	keep := greedyKeep(detections, config)
	if len(keep) == 0 {
		return nil
	}
	filtered := make([]Result, len(keep))
	for i, k := range keep {
		filtered[i] = detections[k]
	}
	return filtered
}

// greedyKeep returns the indices of the detections that survive suppression, strongest first.
func greedyKeep(detections []Result, config NMSConfig) []int {
	n := len(detections)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return detections[order[a]].Score > detections[order[b]].Score })

	keep := make([]int, 0, n)
	used := make([]bool, n)

	for oi, i := range order {
		if used[i] {
			continue
		}

		anchor := detections[i]
		keep = append(keep, i)
		used[i] = true
		if config.MaxResults > 0 && len(keep) == config.MaxResults {
			break
		}

		for _, j := range order[oi+1:] {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return keep
}

// SuppressOverlaps removes duplicate boxes of the same ingredient for overlays.
//
// Arguments:
//   - detections: The labelled detections of one photo.
//   - iou: The IoU above which the weaker of two same-class boxes is dropped.
//
// Returns:
//   - []Detection: The surviving detections, strongest first.
func SuppressOverlaps(detections []Detection, iou float32) []Detection {
	results := make([]Result, len(detections))
	for i, d := range detections {
		results[i] = Result{Box: d.Box, Score: d.Score, Class: d.Class}
	}

	keep := greedyKeep(results, NMSConfig{IoUThreshold: iou, ClassAware: true})
	if len(keep) == 0 {
		return nil
	}
	out := make([]Detection, len(keep))
	for i, k := range keep {
		out[i] = detections[k]
	}
	return out
}
