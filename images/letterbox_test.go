package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustImage(t *testing.T, width, height int, c color.Color) *Image {
	t.Helper()
	img, err := FromImage(solidImage(width, height, c))
	require.NoError(t, err)
	return img
}

// TestLetterbox_Shape validates that any positive source size yields exactly the target canvas.
func TestLetterbox_Shape(t *testing.T) {
	sources := []image.Point{
		{1, 1}, {600, 800}, {800, 600}, {1920, 1080}, {33, 977}, {640, 640}, {1000, 1},
	}
	targets := []image.Point{{640, 640}, {640, 320}, {320, 640}, {416, 416}}

	for _, src := range sources {
		img := mustImage(t, src.X, src.Y, color.Gray{128})
		for _, dst := range targets {
			canvas, factors, err := Letterbox(img, dst.X, dst.Y)
			require.NoError(t, err, "source %v target %v", src, dst)
			assert.Equal(t, image.Rect(0, 0, dst.X, dst.Y), canvas.Bounds(), "source %v target %v", src, dst)
			assert.Equal(t, src.X, factors.SourceWidth)
			assert.Equal(t, src.Y, factors.SourceHeight)
			assert.GreaterOrEqual(t, factors.XRatio, 1.0-1e-9, "padding never shrinks the ratio")
			assert.GreaterOrEqual(t, factors.YRatio, 1.0-1e-9, "padding never shrinks the ratio")
		}
	}
}

// TestLetterbox_PadsInsteadOfDistorting places a square photo into a wide input.
func TestLetterbox_PadsInsteadOfDistorting(t *testing.T) {
	img := mustImage(t, 100, 100, color.RGBA{255, 0, 0, 255})

	canvas, factors, err := Letterbox(img, 640, 320)
	require.NoError(t, err)

	assert.InDelta(t, 3.2, factors.Scale, 1e-9)
	assert.InDelta(t, 2.0, factors.XRatio, 1e-9)
	assert.InDelta(t, 1.0, factors.YRatio, 1e-9)

	// The resized square occupies the top-left 320x320 block.
	inside := canvas.RGBAAt(319, 160)
	assert.Greater(t, inside.R, uint8(250))
	assert.Less(t, inside.G, uint8(5))

	// Everything to the right of it is zero padding.
	for _, x := range []int{320, 400, 639} {
		px := canvas.RGBAAt(x, 160)
		assert.Equal(t, uint8(0), px.R, "x=%d", x)
		assert.Equal(t, uint8(0), px.G, "x=%d", x)
		assert.Equal(t, uint8(0), px.B, "x=%d", x)
	}
}

// TestLetterbox_TallSource pads the bottom of a tall target.
func TestLetterbox_TallSource(t *testing.T) {
	img := mustImage(t, 800, 600, color.RGBA{0, 0, 255, 255})

	canvas, factors, err := Letterbox(img, 640, 640)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, factors.Scale, 1e-9)
	assert.InDelta(t, 1.0, factors.XRatio, 1e-9)
	assert.InDelta(t, 640.0/480.0, factors.YRatio, 1e-9)
	assert.Greater(t, canvas.RGBAAt(320, 470).B, uint8(250))
	assert.Equal(t, uint8(0), canvas.RGBAAt(320, 500).B)
}

// TestScaleFactors_RoundTrip recovers a known synthetic box from tensor space.
func TestScaleFactors_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		target image.Point
		box    Rect
	}{
		{name: "square into wide", width: 100, height: 100, target: image.Pt(640, 320), box: Rect{10, 20, 50, 60}},
		{name: "portrait into square", width: 600, height: 800, target: image.Pt(640, 640), box: Rect{120, 300, 480, 790}},
		{name: "landscape into square", width: 1920, height: 1080, target: image.Pt(640, 640), box: Rect{0, 0, 1920, 1080}},
		{name: "odd sizes", width: 333, height: 517, target: image.Pt(416, 416), box: Rect{1.5, 2.25, 200.75, 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := mustImage(t, tt.width, tt.height, color.White)
			_, factors, err := Letterbox(img, tt.target.X, tt.target.Y)
			require.NoError(t, err)

			normalised := factors.ToTensor(tt.box)
			for _, v := range []float32{normalised.X1, normalised.Y1, normalised.X2, normalised.Y2} {
				assert.GreaterOrEqual(t, v, float32(0))
				assert.LessOrEqual(t, v, float32(1)+1e-6)
			}

			back := factors.ToSource(normalised)
			assert.InDelta(t, tt.box.X1, back.X1, 1e-3)
			assert.InDelta(t, tt.box.Y1, back.Y1, 1e-3)
			assert.InDelta(t, tt.box.X2, back.X2, 1e-3)
			assert.InDelta(t, tt.box.Y2, back.Y2, 1e-3)
		})
	}
}

// TestScaleFactors_ToSourceClamps keeps boxes that reach into the padding inside the photo.
func TestScaleFactors_ToSourceClamps(t *testing.T) {
	img := mustImage(t, 100, 100, color.White)
	_, factors, err := Letterbox(img, 640, 320)
	require.NoError(t, err)

	box := factors.ToSource(Rect{X1: 0.4, Y1: -0.1, X2: 0.9, Y2: 1.2})
	assert.Equal(t, float32(80), box.X1)
	assert.Equal(t, float32(0), box.Y1)
	assert.Equal(t, float32(100), box.X2)
	assert.Equal(t, float32(100), box.Y2)
}

func TestLetterbox_Invalid(t *testing.T) {
	img := mustImage(t, 10, 10, color.White)

	_, _, err := Letterbox(img, 0, 640)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, _, err = Letterbox(nil, 640, 640)
	assert.ErrorIs(t, err, ErrInvalidImage)
}
