package benchmark

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/ingredient-vision/models"
	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/test"
	"github.com/nvr-ai/ingredient-vision/util"
)

func newSuite(t *testing.T, rt *test.MockRuntime) *Suite {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	suite, err := NewSuite(NewSuiteArgs{
		Model:      pipeline.NewModelFromRuntime(rt, pipeline.WithModelLogger(logger)),
		Labels:     models.MustFromNames("test", "apple", "banana"),
		OutputPath: t.TempDir(),
		Logger:     logger,
	})
	require.NoError(t, err)
	return suite
}

func corpus() []util.ImageFile {
	gen := test.NewMockPhotoGenerator(120, 160)
	return []util.ImageFile{
		{Path: "a.jpg", Data: gen.JPEG(image.Rect(10, 10, 60, 60))},
		{Path: "b.png", Data: gen.PNG()},
		{Path: "broken.jpg", Data: []byte("not a photo"), Frame: 2},
	}
}

func TestRunScenario(t *testing.T) {
	rt := test.NewMockRuntime(image.Pt(64, 64), test.NewOutput([]float32{0.9, 0.3}, []int{0, 1}))
	suite := newSuite(t, rt)
	suite.SetCorpus(corpus())

	metrics, err := suite.RunScenario(context.Background(),
		NewScenarioBuilder("default").WithIterations(6).WithWarmupRuns(1).Build())
	require.NoError(t, err)

	// Two of every three photos decode; each yields apple and banana.
	assert.Equal(t, 8, metrics.LabelCount)
	assert.Equal(t, 2, metrics.Failures[string(pipeline.KindInvalidImage)])
	assert.InDelta(t, 2.0/6.0, metrics.ErrorRate, 1e-9)
	assert.Contains(t, metrics.StageDurations, "execute")
	assert.Positive(t, metrics.FramesPerSecond)
	assert.Equal(t, 5, rt.Calls())
}

func TestRunScenarioThreshold(t *testing.T) {
	rt := test.NewMockRuntime(image.Pt(64, 64), test.NewOutput([]float32{0.5}, []int{0}))
	suite := newSuite(t, rt)
	suite.SetCorpus(corpus()[:1])

	metrics, err := suite.RunScenario(context.Background(),
		NewScenarioBuilder("strict").WithThreshold(0.7).WithIterations(3).WithWarmupRuns(0).Build())
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.LabelCount)
	assert.Equal(t, 3, metrics.NothingDetected)
}

func TestRunScenarioErrors(t *testing.T) {
	suite := newSuite(t, test.NewMockRuntime(image.Pt(64, 64)))

	_, err := suite.RunScenario(context.Background(), NewScenarioBuilder("empty").Build())
	assert.ErrorContains(t, err, "corpus is empty")

	suite.SetCorpus(corpus())
	_, err = suite.RunScenario(context.Background(), NewScenarioBuilder("bad").WithIterations(0).Build())
	assert.Error(t, err)

	_, err = suite.RunScenario(context.Background(), NewScenarioBuilder("bad").WithThreshold(2).Build())
	assert.Error(t, err)

	_, err = suite.RunScenario(context.Background(), NewScenarioBuilder("bad").WithRelevantClasses("durian").Build())
	assert.ErrorContains(t, err, "durian")

	_, err = NewSuite(NewSuiteArgs{})
	assert.Error(t, err)
}

func TestRunAllScenariosSavesResults(t *testing.T) {
	rt := test.NewMockRuntime(image.Pt(64, 64), test.NewOutput([]float32{0.9}, []int{0}))
	suite := newSuite(t, rt)
	suite.SetCorpus(corpus()[:2])
	suite.AddScenarioSet(QuickScenarios())

	require.NoError(t, suite.RunAllScenarios(context.Background()))
	assert.Len(t, suite.GetResults(), 2)

	entries, err := os.ReadDir(suite.outputDir)
	require.NoError(t, err)
	var ext []string
	for _, e := range entries {
		ext = append(ext, filepath.Ext(e.Name()))
	}
	assert.ElementsMatch(t, []string{".json", ".csv"}, ext)
}

func TestScenarioSetRoundTrip(t *testing.T) {
	for _, name := range []string{"set.yaml", "set.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			set := ThresholdScenarios(0.3, 0.6)
			require.NoError(t, SaveScenarioSet(set, path))

			loaded, err := LoadScenarioSet(path)
			require.NoError(t, err)
			require.Len(t, loaded.Scenarios, 2)
			assert.Equal(t, "threshold_0.30", loaded.Scenarios[0].Name)
			assert.InDelta(t, 0.6, loaded.Scenarios[1].Pipeline.Threshold, 1e-6)
		})
	}
}

func TestLoadScenarioSetRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios:\n  - name: x\n    iterations: 0\n"), 0o644))

	_, err := LoadScenarioSet(path)
	assert.Error(t, err)
}
