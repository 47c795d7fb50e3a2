package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Config describes how the ONNX Runtime environment and session options are prepared.
type Config struct {
	// Backend specifies the execution provider to use.
	Backend Backend `json:"backend" yaml:"backend"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// GraphOptimization is one of "disable", "basic", "extended" or "all".
	GraphOptimization string `json:"graph_optimization" yaml:"graph_optimization"`
	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets the runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets the runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	CUDA     CUDAOptions     `json:"cuda" yaml:"cuda"`
	CoreML   CoreMLOptions   `json:"coreml" yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration sized for a single interactive request at a time.
func DefaultConfig() Config {
	return Config{
		Backend:           CPUProviderBackend,
		GraphOptimization: "extended",
		IntraOpNumThreads: maxInt(1, runtime.NumCPU()/2),
		InterOpNumThreads: 1,
	}
}

// Validate checks the configuration before a session is created.
func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if _, err := c.graphOptimizationLevel(); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.Errorf("thread counts must not be negative, got intra=%d inter=%d",
			c.IntraOpNumThreads, c.InterOpNumThreads)
	}
	return nil
}

// Options returns the provider-specific options for the configured backend, or nil for the CPU.
func (c Config) Options() Options {
	switch c.Backend {
	case CUDAProviderBackend:
		return c.CUDA
	case CoreMLProviderBackend:
		return c.CoreML
	case OpenVINOProviderBackend:
		return c.OpenVINO
	default:
		return nil
	}
}

func (c Config) graphOptimizationLevel() (ort.GraphOptimizationLevel, error) {
	switch c.GraphOptimization {
	case "disable":
		return ort.GraphOptimizationLevelDisableAll, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "", "extended":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", c.GraphOptimization)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
