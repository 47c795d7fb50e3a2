package images

import (
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ErrInvalidTarget is returned when a requested output size is not positive.
var ErrInvalidTarget = errors.New("invalid target size")

// ScaleFactors records how a source image was fitted into a detector input.
//
// The resized image sits at the top-left of the canvas and the remainder is zero padded, so
// a tensor-normalised coordinate maps back to the source by multiplying with the ratio and
// the source size.
type ScaleFactors struct {
	// XRatio is TargetWidth / (SourceWidth * Scale).
	XRatio float64 `json:"x_ratio" yaml:"x_ratio"`
	// YRatio is TargetHeight / (SourceHeight * Scale).
	YRatio float64 `json:"y_ratio" yaml:"y_ratio"`
	// Scale is the uniform resize factor applied to the source.
	Scale float64 `json:"scale" yaml:"scale"`
	// SourceWidth is the width of the original image.
	SourceWidth int `json:"source_width" yaml:"source_width"`
	// SourceHeight is the height of the original image.
	SourceHeight int `json:"source_height" yaml:"source_height"`
	// TargetWidth is the width of the detector input.
	TargetWidth int `json:"target_width" yaml:"target_width"`
	// TargetHeight is the height of the detector input.
	TargetHeight int `json:"target_height" yaml:"target_height"`
}

// ToSource maps a box normalised to the detector input back to source-image pixels.
//
// Arguments:
//   - box: Coordinates in [0, 1] of the input tensor.
//
// Returns:
//   - Rect: The box in source pixels, clamped to the source image.
func (s ScaleFactors) ToSource(box Rect) Rect {
	sx := float32(s.XRatio * float64(s.SourceWidth))
	sy := float32(s.YRatio * float64(s.SourceHeight))
	return Rect{
		X1: box.X1 * sx,
		Y1: box.Y1 * sy,
		X2: box.X2 * sx,
		Y2: box.Y2 * sy,
	}.Clamp(float32(s.SourceWidth), float32(s.SourceHeight))
}

// ToTensor maps a box in source pixels to coordinates normalised to the detector input.
// It is the inverse of ToSource for boxes inside the source image.
func (s ScaleFactors) ToTensor(box Rect) Rect {
	sx := float32(s.XRatio * float64(s.SourceWidth))
	sy := float32(s.YRatio * float64(s.SourceHeight))
	if sx == 0 || sy == 0 {
		return Rect{}
	}
	return Rect{
		X1: box.X1 / sx,
		Y1: box.Y1 / sy,
		X2: box.X2 / sx,
		Y2: box.Y2 / sy,
	}
}

// Letterbox fits img into a targetWidth x targetHeight canvas without distorting it.
//
// Order of operations:
//  1. scale = min(targetWidth/width, targetHeight/height).
//  2. Bilinear resize to round(width*scale) x round(height*scale).
//  3. Copy into the top-left corner of a zero-filled canvas.
//
// Arguments:
//   - img: The source image.
//   - targetWidth: The detector input width.
//   - targetHeight: The detector input height.
//
// Returns:
//   - *image.RGBA: The letterboxed canvas, exactly targetWidth x targetHeight.
//   - ScaleFactors: The ratios needed to map detections back to img.
//   - error: ErrInvalidImage or ErrInvalidTarget.
func Letterbox(img *Image, targetWidth, targetHeight int) (*image.RGBA, ScaleFactors, error) {
	if err := img.Validate(); err != nil {
		return nil, ScaleFactors{}, err
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, ScaleFactors{}, errors.Wrapf(ErrInvalidTarget, "target size %dx%d", targetWidth, targetHeight)
	}

	scale := math.Min(
		float64(targetWidth)/float64(img.Width),
		float64(targetHeight)/float64(img.Height),
	)
	newWidth := fit(float64(img.Width)*scale, targetWidth)
	newHeight := fit(float64(img.Height)*scale, targetHeight)

	var resized image.Image = img.pix
	if newWidth != img.Width || newHeight != img.Height {
		resized = resize.Resize(uint(newWidth), uint(newHeight), img.pix, resize.Bilinear)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(canvas, image.Rect(0, 0, newWidth, newHeight), resized, resized.Bounds().Min, draw.Src)

	return canvas, ScaleFactors{
		XRatio:       float64(targetWidth) / (float64(img.Width) * scale),
		YRatio:       float64(targetHeight) / (float64(img.Height) * scale),
		Scale:        scale,
		SourceWidth:  img.Width,
		SourceHeight: img.Height,
		TargetWidth:  targetWidth,
		TargetHeight: targetHeight,
	}, nil
}

// fit rounds a scaled length and keeps it inside [1, limit].
func fit(v float64, limit int) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	if n > limit {
		return limit
	}
	return n
}
