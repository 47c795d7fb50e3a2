package inference

import (
	"github.com/nvr-ai/ingredient-vision/images"
)

// Prepare converts a photo into the detector input tensor.
//
// The photo is letterboxed into targetWidth x targetHeight (top-left placement, black padding)
// and every channel value is divided by 255.
//
// Arguments:
//   - img: The photo to prepare.
//   - targetWidth: The detector input width.
//   - targetHeight: The detector input height.
//
// Returns:
//   - *InputTensor: A (targetHeight, targetWidth, 3) tensor.
//   - images.ScaleFactors: The factors that map tensor boxes back to img.
//   - error: images.ErrInvalidImage or images.ErrInvalidTarget.
//
// Example Usage:
// ```go
//
//	input, factors, err := inference.Prepare(photo, 640, 640)
//	if err != nil {
//		return err
//	}
//	output, err := runtime.Execute(ctx, input)
//
// ```
func Prepare(img *images.Image, targetWidth, targetHeight int) (*InputTensor, images.ScaleFactors, error) {
	canvas, factors, err := images.Letterbox(img, targetWidth, targetHeight)
	if err != nil {
		return nil, images.ScaleFactors{}, err
	}

	data := make([]float32, targetWidth*targetHeight*Channels)
	i := 0
	for y := 0; y < targetHeight; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+targetWidth*4]
		for x := 0; x < targetWidth; x++ {
			px := row[x*4 : x*4+3]
			data[i] = float32(px[0]) / 255.0
			data[i+1] = float32(px[1]) / 255.0
			data[i+2] = float32(px[2]) / 255.0
			i += Channels
		}
	}

	input, err := NewInputTensor(targetWidth, targetHeight, data)
	if err != nil {
		return nil, images.ScaleFactors{}, err
	}
	return input, factors, nil
}
