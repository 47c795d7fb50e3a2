package detectors

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/ingredient-vision/inference"
)

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.ModelPath = "ingredients.onnx"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "missing model path", mutate: func(c *Config) { c.ModelPath = "" }, wantErr: true},
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "tflite" }, wantErr: true},
		{name: "negative input", mutate: func(c *Config) { c.InputShape = image.Pt(-1, 640) }, wantErr: true},
		{name: "dynamic input", mutate: func(c *Config) { c.InputShape = image.Point{} }},
		{name: "unknown input layout", mutate: func(c *Config) { c.InputLayout = "chwn" }, wantErr: true},
		{name: "unknown output layout", mutate: func(c *Config) { c.OutputLayout = "ssd" }, wantErr: true},
		{name: "split with two names", mutate: func(c *Config) { c.OutputNames = []string{"a", "b"} }, wantErr: true},
		{name: "split with four names", mutate: func(c *Config) { c.OutputNames = []string{"a", "b", "c", "d"} }},
		{name: "yolo with two names", mutate: func(c *Config) {
			c.OutputLayout = OutputLayoutYOLO
			c.OutputNames = []string{"a", "b"}
		}, wantErr: true},
		{name: "opencv split", mutate: func(c *Config) { c.Engine = inference.EngineOpenCV }, wantErr: true},
		{name: "opencv yolo", mutate: func(c *Config) {
			c.Engine = inference.EngineOpenCV
			c.OutputLayout = OutputLayoutYOLO
		}},
		{name: "negative warmup", mutate: func(c *Config) { c.Warmup = -1 }, wantErr: true},
		{name: "bad provider", mutate: func(c *Config) { c.Provider.Backend = "tpu" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestYOLOConfigBindsInput(t *testing.T) {
	cfg := DefaultConfig()
	y := cfg.yoloConfig(image.Pt(320, 256), 25)
	assert.Equal(t, 320, y.InputWidth)
	assert.Equal(t, 256, y.InputHeight)
	assert.Equal(t, 25, y.NMS.MaxResults)

	y = cfg.yoloConfig(image.Pt(320, 256), 0)
	assert.Equal(t, cfg.YOLO.NMS.MaxResults, y.NMS.MaxResults)
}

func TestDeclaredInputShape(t *testing.T) {
	assert.Equal(t, image.Pt(640, 480), declaredInputShape(ort.NewShape(1, 480, 640, 3), InputLayoutNHWC))
	assert.Equal(t, image.Pt(640, 480), declaredInputShape(ort.NewShape(1, 3, 480, 640), InputLayoutNCHW))
	assert.Equal(t, image.Pt(-1, -1), declaredInputShape(ort.NewShape(1, -1, -1, 3), InputLayoutNHWC))
	assert.Equal(t, image.Point{}, declaredInputShape(ort.NewShape(1, 3), InputLayoutNHWC))
}

func TestDeclaredSlots(t *testing.T) {
	outputs := []ort.InputOutputInfo{
		{Name: "boxes", Dimensions: ort.NewShape(1, 100, 4)},
		{Name: "scores", Dimensions: ort.NewShape(1, 100)},
		{Name: "dynamic", Dimensions: ort.NewShape(1, -1)},
	}
	assert.Equal(t, 100, declaredSlots(outputs, "scores"))
	assert.Equal(t, 0, declaredSlots(outputs, "dynamic"))
	assert.Equal(t, 0, declaredSlots(outputs, "missing"))
}

func TestResolveOutputNames(t *testing.T) {
	outputs := []ort.InputOutputInfo{
		{Name: "boxes"}, {Name: "scores"}, {Name: "classes"}, {Name: "num"}, {Name: "extra"},
	}

	cfg := DefaultConfig()
	names, err := resolveOutputNames(cfg, outputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"boxes", "scores", "classes", "num"}, names)

	cfg.OutputNames = []string{"b", "s", "c"}
	names, err = resolveOutputNames(cfg, outputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "s", "c"}, names)

	cfg = DefaultConfig()
	cfg.OutputLayout = OutputLayoutYOLO
	names, err = resolveOutputNames(cfg, outputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"boxes"}, names)

	cfg = DefaultConfig()
	_, err = resolveOutputNames(cfg, outputs[:2])
	assert.Error(t, err)
}
