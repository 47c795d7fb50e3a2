package providers

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// Initialize prepares the process-wide ONNX Runtime environment.
//
// Order of operations:
//  1. Library path check: Ensures the native runtime is accessible.
//  2. Environment setup: Loads the native library and prepares internal state.
//
// Calling Initialize again after a successful call is a no-op; after a failure it retries.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - error: An error if the library is missing or the environment cannot be initialised.
func Initialize(cfg Config) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if libPath == "" {
		return errors.New("no onnxruntime library is available for this platform")
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// NewSessionOptions builds session options for cfg.
//
// Threading and graph optimization are applied first, then the configured execution provider
// is appended. The caller owns the returned options and must Destroy them.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: The session options.
//   - error: An error if an option or execution provider is rejected by the runtime.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	level, err := cfg.graphOptimizationLevel()
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := applySessionOptions(options, cfg, level); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func applySessionOptions(options *ort.SessionOptions, cfg Config, level ort.GraphOptimizationLevel) error {
	if err := options.SetIntraOpNumThreads(cfg.IntraOpNumThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpNumThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	switch cfg.Backend {
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(cfg.CoreML.Flags()); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(cfg.OpenVINO.settings()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case CUDAProviderBackend:
		cuda, err := cfg.CUDA.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	}
	return nil
}
