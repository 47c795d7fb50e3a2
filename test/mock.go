// Package test - Deterministic runtimes and photos for pipeline tests.
package test

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/ingredient-vision/images"
	"github.com/nvr-ai/ingredient-vision/inference"
)

// MockRuntime is an inference.Runtime that replays canned outputs.
//
// Outputs are returned in order; once exhausted the last one repeats. When Block is set, Execute
// waits for it to be closed or for the context to end, which lets tests cancel a run mid-flight.
//
// @example
// rt := NewMockRuntime(image.Pt(640, 640), NewOutput([]float32{0.9}, []int{0}))
// output, err := rt.Execute(ctx, inference.Ones(640, 640))
type MockRuntime struct {
	Size    image.Point
	Slots   int
	Outputs []*inference.Output
	Err     error
	Block   chan struct{}
	// Started receives one value per Execute call once the call is running, if non-nil.
	Started chan struct{}

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewMockRuntime creates a runtime with input size and canned outputs.
//
// Arguments:
// - size: The input tensor size (Tᵂ, Tᴴ).
// - outputs: The outputs to replay.
//
// Returns:
// - A MockRuntime ready to execute.
func NewMockRuntime(size image.Point, outputs ...*inference.Output) *MockRuntime {
	slots := 0
	if len(outputs) > 0 && outputs[0] != nil {
		slots = outputs[0].Len()
	}
	return &MockRuntime{Size: size, Slots: slots, Outputs: outputs}
}

// Execute returns the next canned output.
func (m *MockRuntime) Execute(ctx context.Context, input *inference.InputTensor) (*inference.Output, error) {
	if err := input.Expect(m.Size); err != nil {
		return nil, err
	}

	m.mu.Lock()
	call := m.calls
	m.calls++
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Outputs) == 0 {
		return &inference.Output{}, nil
	}
	if call >= len(m.Outputs) {
		call = len(m.Outputs) - 1
	}
	return cloneOutput(m.Outputs[call]), nil
}

// InputShape returns Size.
func (m *MockRuntime) InputShape() image.Point {
	return m.Size
}

// MaxDetections returns Slots.
func (m *MockRuntime) MaxDetections() int {
	return m.Slots
}

// Close marks the runtime closed.
func (m *MockRuntime) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Execute was invoked.
func (m *MockRuntime) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockRuntime) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// NewOutput builds an output with one centred box per slot.
func NewOutput(scores []float32, classes []int) *inference.Output {
	boxes := make([]images.Rect, len(scores))
	for i := range boxes {
		boxes[i] = images.Rect{X1: 0.25, Y1: 0.25, X2: 0.5, Y2: 0.5}
	}
	return &inference.Output{Boxes: boxes, Scores: scores, Classes: classes}
}

func cloneOutput(o *inference.Output) *inference.Output {
	if o == nil {
		return nil
	}
	return &inference.Output{
		Boxes:   append([]images.Rect(nil), o.Boxes...),
		Scores:  append([]float32(nil), o.Scores...),
		Classes: append([]int(nil), o.Classes...),
	}
}
