package images

import (
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Default capture size applied to photos before detection.
const (
	CaptureWidth  = 600
	CaptureHeight = 800
)

// FitCapture normalises a camera or gallery photo to width x height.
//
// The photo is scaled to cover the target and center-cropped, so the 3:4 capture frame never
// stretches the food in it.
//
// Arguments:
//   - img: The decoded photo.
//   - width: Target width in pixels.
//   - height: Target height in pixels.
//
// Returns:
//   - *Image: A new image of exactly width x height.
//   - error: ErrInvalidImage if img is invalid or the target is not positive.
func FitCapture(img *Image, width, height int) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidTarget, "capture size %dx%d", width, height)
	}
	if img.Width == width && img.Height == height {
		return img, nil
	}

	filled := imaging.Fill(img.pix, width, height, imaging.Center, imaging.Lanczos)
	out, err := FromImage(filled)
	if err != nil {
		return nil, err
	}
	out.Format = img.Format
	return out, nil
}
