package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/ingredient-vision/images"
)

func photo(t *testing.T, width, height int, c color.RGBA) *images.Image {
	t.Helper()
	raster := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			raster.SetRGBA(x, y, c)
		}
	}
	img, err := images.FromImage(raster)
	require.NoError(t, err)
	return img
}

func TestPrepare_Shape(t *testing.T) {
	for _, size := range []image.Point{{1, 1}, {600, 800}, {1920, 1080}, {17, 3}} {
		input, factors, err := Prepare(photo(t, size.X, size.Y, color.RGBA{10, 20, 30, 255}), 320, 320)
		require.NoError(t, err, "source %v", size)
		assert.Equal(t, tensor.Shape{320, 320, 3}, input.Shape(), "source %v", size)
		assert.Equal(t, size.X, factors.SourceWidth)
		assert.Equal(t, size.Y, factors.SourceHeight)
	}
}

func TestPrepare_NormalisesAndPads(t *testing.T) {
	input, factors, err := Prepare(photo(t, 100, 100, color.RGBA{255, 51, 0, 255}), 64, 32)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, factors.XRatio, 1e-9)
	assert.InDelta(t, 1.0, factors.YRatio, 1e-9)

	data := input.Data()
	at := func(x, y, c int) float32 { return data[(y*64+x)*3+c] }

	assert.InDelta(t, 1.0, at(0, 0, 0), 0.02)
	assert.InDelta(t, 0.2, at(0, 0, 1), 0.02)
	assert.InDelta(t, 0.0, at(0, 0, 2), 0.02)

	for _, v := range []float32{at(40, 10, 0), at(40, 10, 1), at(63, 31, 2)} {
		assert.Equal(t, float32(0), v, "padding must be black")
	}
	for _, v := range data {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
}

func TestPrepare_Invalid(t *testing.T) {
	_, _, err := Prepare(nil, 64, 64)
	assert.ErrorIs(t, err, images.ErrInvalidImage)

	_, _, err = Prepare(photo(t, 4, 4, color.RGBA{}), -1, 64)
	assert.ErrorIs(t, err, images.ErrInvalidTarget)
}
