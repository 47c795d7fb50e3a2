// Package images - Image definition and decoding for the detection pipeline.
package images

import (
	"bytes"
	"image"
	"io"
	"os"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrInvalidImage is returned when an image is empty, has a zero dimension or cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// Image is a decoded RGB raster produced by a camera capture or gallery pick.
//
// An Image owns a private copy of its pixels and is never mutated after construction, so it
// can be handed to the pipeline without copying.
type Image struct {
	// The format the image was decoded from.
	Format Format `json:"format" yaml:"format"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`

	pix *image.RGBA
}

// FromImage copies img into a new Image.
//
// Arguments:
//   - img: The source raster. Any color model is accepted; alpha is ignored downstream.
//
// Returns:
//   - *Image: The owned copy.
//   - error: ErrInvalidImage if img is nil or has a zero dimension.
func FromImage(img image.Image) (*Image, error) {
	if img == nil {
		return nil, errors.Wrap(ErrInvalidImage, "image is nil")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Wrapf(ErrInvalidImage, "invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}

	pix := clone.AsRGBA(img)
	// Pix starts at Rect.Min, so shifting the rectangle re-anchors the raster at the origin.
	pix.Rect = pix.Rect.Sub(pix.Rect.Min)

	return &Image{
		Format: FormatRaw,
		Width:  b.Dx(),
		Height: b.Dy(),
		pix:    pix,
	}, nil
}

// Decode reads an encoded photo and returns the decoded Image.
//
// JPEG orientation tags are applied so that phone captures come out upright.
//
// Arguments:
//   - r: The encoded image bytes (JPEG, PNG, GIF or WebP).
//
// Returns:
//   - *Image: The decoded image.
//   - error: ErrInvalidImage if the bytes are empty, undecodable or zero-sized.
func Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an in-memory photo. See Decode.
func DecodeBytes(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidImage, "image data is empty")
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidImage, "failed to read image header: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidImage, "invalid image dimensions: %dx%d", cfg.Width, cfg.Height)
	}

	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidImage, "failed to decode %s image: %v", name, err)
	}

	img, err := FromImage(decoded)
	if err != nil {
		return nil, err
	}
	img.Format = ParseFormat(name)
	return img, nil
}

// DecodeFile opens and decodes the photo at path.
func DecodeFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()

	return Decode(f)
}

// Bounds returns the image rectangle, always anchored at the origin.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.Width, i.Height)
}

// Raster exposes the pixels as a read-only image.Image.
func (i *Image) Raster() image.Image {
	return i.pix
}

// Validate reports whether the image can be fed to the preprocessor.
func (i *Image) Validate() error {
	if i == nil || i.pix == nil {
		return errors.Wrap(ErrInvalidImage, "image is nil")
	}
	if i.Width <= 0 || i.Height <= 0 {
		return errors.Wrapf(ErrInvalidImage, "invalid image dimensions: %dx%d", i.Width, i.Height)
	}
	return nil
}
