// Package postprocess - Turns raw detector output into ingredient labels and detections.
package postprocess

import (
	"encoding/json"

	"github.com/nvr-ai/ingredient-vision/images"
)

// Result represents a single raw detection used during suppression.
type Result struct {
	// The bounding box of the result.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}

// Detection is one labelled detection with its box in source-image pixels.
type Detection struct {
	Label string      `json:"label"`
	Class int         `json:"class"`
	Score float32     `json:"score"`
	Box   images.Rect `json:"box"`
}

// DetectionResult is the ordered, duplicate-free list of ingredient labels found in one photo.
//
// Labels keep the order in which the detector first reported them. The zero value is an empty
// result, which means nothing was detected.
type DetectionResult struct {
	labels []string
}

// NewDetectionResult builds a result from labels, dropping repeats after the first occurrence.
func NewDetectionResult(labels ...string) DetectionResult {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return DetectionResult{labels: out}
}

// Labels returns a copy of the labels in detection order.
func (r DetectionResult) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Len returns the number of labels.
func (r DetectionResult) Len() int {
	return len(r.labels)
}

// Empty reports whether nothing was detected.
func (r DetectionResult) Empty() bool {
	return len(r.labels) == 0
}

// Contains reports whether label was detected.
func (r DetectionResult) Contains(label string) bool {
	for _, l := range r.labels {
		if l == label {
			return true
		}
	}
	return false
}

// Only keeps the labels present in relevant, preserving order. An empty allow-list keeps all.
func (r DetectionResult) Only(relevant []string) DetectionResult {
	if len(relevant) == 0 {
		return r
	}
	allowed := make(map[string]struct{}, len(relevant))
	for _, l := range relevant {
		allowed[l] = struct{}{}
	}
	out := make([]string, 0, len(r.labels))
	for _, l := range r.labels {
		if _, ok := allowed[l]; ok {
			out = append(out, l)
		}
	}
	return DetectionResult{labels: out}
}

// MarshalJSON encodes the result as a JSON array of labels.
func (r DetectionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Labels())
}

// UnmarshalJSON decodes a JSON array of labels, dropping repeats.
func (r *DetectionResult) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*r = NewDetectionResult(labels...)
	return nil
}
