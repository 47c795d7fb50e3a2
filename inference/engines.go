package inference

import "github.com/pkg/errors"

// EngineType selects the native library that executes the detector.
type EngineType string

const (
	// EngineONNX is the ONNX engine that uses the onnxruntime library.
	EngineONNX EngineType = "onnx"
	// EngineOpenCV is the OpenCV DNN engine. It requires a build with the gocv tag.
	EngineOpenCV EngineType = "opencv"
)

// Engines is a list of all supported engines.
var Engines = []EngineType{EngineONNX, EngineOpenCV}

// ParseEngine maps a configured engine name to an EngineType.
func ParseEngine(name string) (EngineType, error) {
	for _, e := range Engines {
		if string(e) == name {
			return e, nil
		}
	}
	return "", errors.Errorf("unknown engine %q", name)
}
