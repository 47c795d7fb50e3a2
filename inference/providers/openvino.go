package providers

import "strconv"

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (CPU, GPU, NPU) at runtime.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// FP32, FP16 or ACCURACY. Empty uses the device default.
	Precision string `json:"precision" yaml:"precision"`
	// Overrides the accelerator default number of threads. Zero keeps the default.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
	// Rewrite dynamic shaped models to static shape at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes"`
}

func (OpenVINOOptions) isProviderOptions() {}

// settings renders the options in the key/value form the OpenVINO provider accepts.
func (o OpenVINOOptions) settings() map[string]string {
	s := map[string]string{
		"disable_dynamic_shapes": strconv.FormatBool(o.DisableDynamicShapes),
	}
	if o.DeviceType != "" {
		s["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		s["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		s["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	return s
}
