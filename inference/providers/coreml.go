package providers

// CoreML provider flags.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
const (
	CoreMLFlagUseCPUOnly            uint32 = 0x001
	CoreMLFlagEnableOnSubgraph      uint32 = 0x002
	CoreMLFlagOnlyEnableDeviceANE   uint32 = 0x004
	CoreMLFlagOnlyAllowStaticShapes uint32 = 0x008
	CoreMLFlagCreateMLProgram       uint32 = 0x010
)

// CoreMLOptions contains arguments for the CoreML provider.
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpu_only" yaml:"cpu_only"`
	// Enable CoreML EP to run on a subgraph in the body of a control flow operator.
	EnableOnSubgraphs bool `json:"enable_on_subgraphs" yaml:"enable_on_subgraphs"`
	// Only allow the CoreML EP to take nodes with inputs that have static shapes.
	RequireStaticInputShapes bool `json:"require_static_input_shapes" yaml:"require_static_input_shapes"`
	// Create an MLProgram format model. Requires Core ML 5 or later (iOS 15+ or macOS 12+).
	MLProgram bool `json:"ml_program" yaml:"ml_program"`
}

func (CoreMLOptions) isProviderOptions() {}

// Flags packs the options into the bit set the CoreML provider accepts.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= CoreMLFlagUseCPUOnly
	}
	if o.EnableOnSubgraphs {
		flags |= CoreMLFlagEnableOnSubgraph
	}
	if o.RequireStaticInputShapes {
		flags |= CoreMLFlagOnlyAllowStaticShapes
	}
	if o.MLProgram {
		flags |= CoreMLFlagCreateMLProgram
	}
	return flags
}
