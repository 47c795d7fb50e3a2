package detectors

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/inference"
)

// Constructor builds a runtime for a validated configuration.
type Constructor func(cfg Config) (inference.Runtime, error)

// constructors maps engines to their runtime constructors.
var constructors = map[inference.EngineType]Constructor{
	inference.EngineONNX: func(cfg Config) (inference.Runtime, error) {
		rt, err := NewONNX(cfg)
		if err != nil {
			return nil, err
		}
		return rt, nil
	},
	inference.EngineOpenCV: NewOpenCV,
}

// Load creates the runtime described by cfg and warms it up.
//
// The native load runs on its own goroutine so a cancelled ctx returns immediately; a runtime
// that finishes loading after cancellation is closed. Warm-up executes cfg.Warmup runs on a
// tensor of ones so the first real photo does not pay for lazy initialisation.
//
// Arguments:
//   - ctx: Cancels the wait for the load and the warm-up.
//   - cfg: The detector configuration.
//
// Returns:
//   - inference.Runtime: The ready runtime.
//   - error: An error matching inference.ErrModelLoad, or ctx.Err().
func Load(ctx context.Context, cfg Config) (inference.Runtime, error) {
	return LoadWith(ctx, cfg, constructors[cfg.Engine])
}

// LoadWith is Load with an explicit constructor.
func LoadWith(ctx context.Context, cfg Config, construct Constructor) (inference.Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoad, "invalid detector config: %v", err)
	}
	if construct == nil {
		return nil, errors.Wrapf(inference.ErrModelLoad, "no runtime for engine %q", cfg.Engine)
	}

	type loaded struct {
		runtime inference.Runtime
		err     error
	}
	done := make(chan loaded, 1)
	abandoned := make(chan struct{})

	go func() {
		var res loaded
		func() {
			defer func() {
				if r := recover(); r != nil {
					res = loaded{err: errors.Errorf("panic during model load: %v", r)}
				}
			}()
			res.runtime, res.err = construct(cfg)
		}()

		select {
		case done <- res:
		case <-abandoned:
			if res.runtime != nil {
				res.runtime.Close()
			}
		}
	}()

	var rt inference.Runtime
	select {
	case res := <-done:
		if res.err != nil {
			return nil, errors.Wrapf(inference.ErrModelLoad, "%s: %v", cfg.ModelPath, res.err)
		}
		rt = res.runtime
	case <-ctx.Done():
		close(abandoned)
		return nil, ctx.Err()
	}

	if err := warmUp(ctx, rt, cfg.Warmup); err != nil {
		rt.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(inference.ErrModelLoad, "warm-up failed: %v", err)
	}
	return rt, nil
}

// warmUp runs inference on a tensor of ones.
//
// Arguments:
//   - ctx: Cancels the warm-up.
//   - rt: The runtime to warm.
//   - runs: The number of times to run inference.
//
// Returns:
//   - error: An error if any run fails.
func warmUp(ctx context.Context, rt inference.Runtime, runs int) error {
	if runs <= 0 {
		return nil
	}
	size := rt.InputShape()
	input := inference.Ones(size.X, size.Y)
	for i := 0; i < runs; i++ {
		if _, err := rt.Execute(ctx, input); err != nil {
			return err
		}
	}
	return nil
}
