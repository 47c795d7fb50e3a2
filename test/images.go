package test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/nvr-ai/ingredient-vision/images"
)

// MockPhotoGenerator creates deterministic photos for idempotent testing.
//
// @example
// gen := NewMockPhotoGenerator(600, 800)
// img := gen.Photo()
type MockPhotoGenerator struct {
	width      int
	height     int
	background color.RGBA
}

// NewMockPhotoGenerator creates a new generator with specified dimensions.
//
// Arguments:
// - width: Photo width in pixels.
// - height: Photo height in pixels.
//
// Returns:
// - A configured MockPhotoGenerator instance.
func NewMockPhotoGenerator(width, height int) *MockPhotoGenerator {
	return &MockPhotoGenerator{
		width:      width,
		height:     height,
		background: color.RGBA{128, 128, 128, 255}, // Mid-gray countertop.
	}
}

// Raster returns a photo with a bright square drawn at each of the given rectangles.
func (g *MockPhotoGenerator) Raster(objects ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.SetRGBA(x, y, g.background)
		}
	}
	for _, r := range objects {
		r = r.Intersect(img.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetRGBA(x, y, color.RGBA{230, 120, 20, 255}) // Carrot orange.
			}
		}
	}
	return img
}

// Photo returns Raster wrapped as an images.Image.
func (g *MockPhotoGenerator) Photo(objects ...image.Rectangle) *images.Image {
	img, err := images.FromImage(g.Raster(objects...))
	if err != nil {
		panic(err)
	}
	return img
}

// JPEG returns the encoded photo.
func (g *MockPhotoGenerator) JPEG(objects ...image.Rectangle) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, g.Raster(objects...), &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNG returns the encoded photo.
func (g *MockPhotoGenerator) PNG(objects ...image.Rectangle) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, g.Raster(objects...)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
