// Package providers - ONNX Runtime environment setup and execution providers.
package providers

import (
	"github.com/pkg/errors"
)

// Backend represents an ONNX Runtime execution provider.
type Backend string

const (
	// CPUProviderBackend runs the model on the default CPU provider.
	CPUProviderBackend Backend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend Backend = "coreml"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend Backend = "cuda"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend Backend = "openvino"
)

// Backends lists every supported execution provider.
var Backends = []Backend{CPUProviderBackend, CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend}

// ParseBackend maps a configured provider name to a Backend. An empty name selects the CPU.
func ParseBackend(name string) (Backend, error) {
	if name == "" {
		return CPUProviderBackend, nil
	}
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", errors.Errorf("unsupported execution provider %q", name)
}

// Options is a marker interface for provider-specific settings.
type Options interface {
	isProviderOptions()
}
