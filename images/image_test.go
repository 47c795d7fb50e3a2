package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidImage creates a uniformly colored RGBA raster.
func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	src := solidImage(40, 30, color.RGBA{200, 100, 50, 255})

	tests := []struct {
		name   string
		data   []byte
		format Format
	}{
		{name: "png", data: encodePNG(t, src), format: FormatPNG},
		{name: "jpeg", data: encodeJPEG(t, src), format: FormatJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeBytes(tt.data)
			require.NoError(t, err)
			assert.Equal(t, 40, img.Width)
			assert.Equal(t, 30, img.Height)
			assert.Equal(t, tt.format, img.Format)
			assert.Equal(t, image.Rect(0, 0, 40, 30), img.Raster().Bounds())
		})
	}
}

func TestDecodeBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "garbage", data: []byte("definitely not an image")},
		{name: "truncated png", data: encodePNG(t, solidImage(8, 8, color.White))[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeBytes(tt.data)
			assert.Nil(t, img)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}

func TestFromImage(t *testing.T) {
	t.Run("rejects nil and empty rasters", func(t *testing.T) {
		_, err := FromImage(nil)
		assert.ErrorIs(t, err, ErrInvalidImage)

		_, err = FromImage(image.NewRGBA(image.Rect(0, 0, 0, 10)))
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("owns a private copy of the pixels", func(t *testing.T) {
		src := solidImage(4, 4, color.RGBA{10, 20, 30, 255})
		img, err := FromImage(src)
		require.NoError(t, err)

		src.Set(0, 0, color.RGBA{255, 255, 255, 255})

		r, g, b, _ := img.Raster().At(0, 0).RGBA()
		assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
	})

	t.Run("normalises offset bounds", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(5, 5, 15, 25))
		img, err := FromImage(src)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 10, 20), img.Bounds())
	})
}

func TestValidate_ZeroValue(t *testing.T) {
	var img *Image
	assert.ErrorIs(t, img.Validate(), ErrInvalidImage)
	assert.ErrorIs(t, (&Image{Width: 10, Height: 10}).Validate(), ErrInvalidImage)
}

func TestFitCapture(t *testing.T) {
	src, err := FromImage(solidImage(1200, 1200, color.RGBA{0, 128, 0, 255}))
	require.NoError(t, err)

	out, err := FitCapture(src, CaptureWidth, CaptureHeight)
	require.NoError(t, err)
	assert.Equal(t, CaptureWidth, out.Width)
	assert.Equal(t, CaptureHeight, out.Height)

	same, err := FitCapture(out, CaptureWidth, CaptureHeight)
	require.NoError(t, err)
	assert.Same(t, out, same, "an already normalised capture is returned as is")

	_, err = FitCapture(src, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJPEG, ParseFormat("jpeg"))
	assert.Equal(t, FormatWebP, ParseFormat("webp"))
	assert.Equal(t, FormatRaw, ParseFormat("bmp"))
}
