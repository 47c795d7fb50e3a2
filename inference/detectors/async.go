package detectors

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/inference"
)

type execResult struct {
	output *inference.Output
	err    error
}

// runAsync executes run on its own goroutine and waits for it or for ctx.
//
// The native call cannot be interrupted, so on cancellation run keeps going in the background;
// it owns every native resource it touches and its result is dropped.
func runAsync(ctx context.Context, run func() (*inference.Output, error)) (*inference.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: errors.Wrapf(inference.ErrInference, "panic during inference: %v", r)}
			}
		}()
		output, err := run()
		done <- execResult{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
